package reconcile

import "fmt"

// Status is the pipeline stage of a lead.
type Status string

const (
	StatusContacted     Status = "contacted"
	StatusOpened        Status = "opened"
	StatusClicked       Status = "clicked"
	StatusReplied       Status = "replied"
	StatusBooked        Status = "booked"
	StatusWon           Status = "won"
	StatusLost          Status = "lost"
	StatusNotInterested Status = "not_interested"
)

// Ordered lists the non-terminal statuses from lowest to highest priority.
var Ordered = []Status{
	StatusContacted,
	StatusOpened,
	StatusClicked,
	StatusReplied,
	StatusBooked,
	StatusWon,
}

var priorities = map[Status]int{
	StatusContacted: 0,
	StatusOpened:    1,
	StatusClicked:   2,
	StatusReplied:   3,
	StatusBooked:    4,
	StatusWon:       5,
}

// Priority returns the position of s in the pipeline. Terminal and unknown
// statuses return -1.
func (s Status) Priority() int {
	if p, ok := priorities[s]; ok {
		return p
	}
	return -1
}

// IsTerminal reports whether s freezes further automatic transitions.
func (s Status) IsTerminal() bool {
	return s == StatusLost || s == StatusNotInterested
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s.IsTerminal() || s.Priority() >= 0
}

// ParseStatus converts a stored or user-supplied status string.
func ParseStatus(value string) (Status, error) {
	s := Status(value)
	if !s.Valid() {
		return "", fmt.Errorf("unknown lead status %q", value)
	}
	return s, nil
}

// CandidateStatus derives the status a provider record argues for. The
// second return value is false when the record carries no status signal.
//
// A not-interested classification wins over every other signal. Otherwise the
// highest-priority signal is returned.
func CandidateStatus(in ProviderLead) (Status, bool) {
	switch in.Interest {
	case InterestNotInterested, InterestWrongPerson:
		return StatusNotInterested, true
	case InterestLost:
		return StatusLost, true
	case InterestMeetingCompleted, InterestClosed:
		return StatusWon, true
	case InterestMeetingBooked:
		return StatusBooked, true
	}

	switch {
	case in.ReplyCount > 0:
		return StatusReplied, true
	case in.ClickCount > 0:
		return StatusClicked, true
	case in.OpenCount > 0:
		return StatusOpened, true
	}
	return "", false
}

// ResolveStatus applies candidate to current. A terminal current status is
// frozen; a terminal candidate always applies to a non-terminal lead; a
// contacted lead always advances; otherwise the candidate must have a strictly
// higher priority.
func ResolveStatus(current, candidate Status) Status {
	if current == "" {
		current = StatusContacted
	}
	if !candidate.Valid() {
		return current
	}
	if current.IsTerminal() {
		return current
	}
	if candidate.IsTerminal() {
		return candidate
	}
	if current == StatusContacted || candidate.Priority() > current.Priority() {
		return candidate
	}
	return current
}
