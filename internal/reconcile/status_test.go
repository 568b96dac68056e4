package reconcile

import "testing"

const fmtExpectedStatus = "expected status=%q, got %q"

func TestResolveStatusNeverRegressesPriority(t *testing.T) {
	for _, current := range Ordered {
		for _, candidate := range Ordered {
			got := ResolveStatus(current, candidate)
			if current == StatusContacted {
				if got != candidate {
					t.Fatalf("contacted must advance to %q, got %q", candidate, got)
				}
				continue
			}
			if got.Priority() < current.Priority() {
				t.Fatalf("status regressed from %q to %q on candidate %q", current, got, candidate)
			}
		}
	}
}

func TestResolveStatusTerminalOverrideAppliesFromAnyNonTerminal(t *testing.T) {
	for _, current := range Ordered {
		if got := ResolveStatus(current, StatusNotInterested); got != StatusNotInterested {
			t.Fatalf(fmtExpectedStatus, StatusNotInterested, got)
		}
		if got := ResolveStatus(current, StatusLost); got != StatusLost {
			t.Fatalf(fmtExpectedStatus, StatusLost, got)
		}
	}
}

func TestResolveStatusTerminalIsFrozen(t *testing.T) {
	candidates := append([]Status{StatusLost, StatusNotInterested}, Ordered...)
	for _, terminal := range []Status{StatusLost, StatusNotInterested} {
		for _, candidate := range candidates {
			if got := ResolveStatus(terminal, candidate); got != terminal {
				t.Fatalf("terminal %q moved to %q on candidate %q", terminal, got, candidate)
			}
		}
	}
}

func TestResolveStatusLateOpenOnWonStaysWon(t *testing.T) {
	candidate, ok := EventStatus(EventEmailOpened)
	if !ok {
		t.Fatalf("expected email_opened to map to a status")
	}
	if got := ResolveStatus(StatusWon, candidate); got != StatusWon {
		t.Fatalf(fmtExpectedStatus, StatusWon, got)
	}
}

func TestResolveStatusEmptyCurrentTreatedAsContacted(t *testing.T) {
	if got := ResolveStatus("", StatusOpened); got != StatusOpened {
		t.Fatalf(fmtExpectedStatus, StatusOpened, got)
	}
	if got := ResolveStatus(StatusReplied, Status("bogus")); got != StatusReplied {
		t.Fatalf(fmtExpectedStatus, StatusReplied, got)
	}
}

func TestCandidateStatus(t *testing.T) {
	tests := []struct {
		name   string
		in     ProviderLead
		want   Status
		wantOK bool
	}{
		{name: "no signals", in: ProviderLead{}, wantOK: false},
		{name: "opened", in: ProviderLead{OpenCount: 2}, want: StatusOpened, wantOK: true},
		{name: "clicked beats opened", in: ProviderLead{OpenCount: 2, ClickCount: 1}, want: StatusClicked, wantOK: true},
		{name: "replied", in: ProviderLead{ReplyCount: 1, OpenCount: 4}, want: StatusReplied, wantOK: true},
		{name: "meeting booked", in: ProviderLead{ReplyCount: 3, Interest: InterestMeetingBooked}, want: StatusBooked, wantOK: true},
		{name: "meeting completed", in: ProviderLead{Interest: InterestMeetingCompleted}, want: StatusWon, wantOK: true},
		{name: "closed", in: ProviderLead{Interest: InterestClosed}, want: StatusWon, wantOK: true},
		{name: "wrong person", in: ProviderLead{ReplyCount: 1, Interest: InterestWrongPerson}, want: StatusNotInterested, wantOK: true},
		{name: "not interested", in: ProviderLead{Interest: InterestNotInterested}, want: StatusNotInterested, wantOK: true},
		{name: "lost", in: ProviderLead{Interest: InterestLost}, want: StatusLost, wantOK: true},
		{name: "interested without replies", in: ProviderLead{Interest: InterestInterested}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CandidateStatus(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if got != tt.want {
				t.Fatalf(fmtExpectedStatus, tt.want, got)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	if _, err := ParseStatus("won"); err != nil {
		t.Fatalf("expected won to parse, got %v", err)
	}
	if _, err := ParseStatus("WON"); err == nil {
		t.Fatalf("expected upper-case status to be rejected")
	}
	if StatusLost.Priority() != -1 {
		t.Fatalf("expected terminal priority -1, got %d", StatusLost.Priority())
	}
}

func TestEventStatusUnknownIsNoop(t *testing.T) {
	if _, ok := EventStatus("campaign_completed"); ok {
		t.Fatalf("expected unknown event to be a no-op")
	}
	var in ProviderLead
	if ApplyEvent(&in, "campaign_completed", "", testNow) {
		t.Fatalf("expected ApplyEvent to reject unknown event")
	}
	if in.OpenCount != 0 || in.ReplyCount != 0 || in.Interest != InterestUnknown {
		t.Fatalf("expected record untouched, got %+v", in)
	}
}
