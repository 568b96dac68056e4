package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  ", ""},
		{"(201) 555-0123", "+12015550123"},
		{"+1 201-555-0123", "+12015550123"},
		{"not a phone", "not a phone"},
	}
	for _, tt := range tests {
		if got := NormalizeE164(tt.in); got != tt.want {
			t.Fatalf("NormalizeE164(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeE164InRegion(t *testing.T) {
	if got := NormalizeE164In("010 123 4567", "nl"); got != "+31101234567" {
		t.Fatalf("expected Dutch number in E.164, got %q", got)
	}
}
