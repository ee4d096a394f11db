package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"5551234567", "+15551234567"},
		{"(555) 123-4567", "+15551234567"},
		{"555-123-4567", "+15551234567"},
		{"+15551234567", "+15551234567"},
		{"15551234567", "+15551234567"},
		{"  5551234567  ", "+15551234567"},
	}
	for _, tc := range cases {
		if got := NormalizeE164(tc.in); got != tc.want {
			t.Errorf("NormalizeE164(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeE164Unparseable(t *testing.T) {
	// Unparseable input comes back trimmed but otherwise untouched.
	if got := NormalizeE164("not a number"); got != "not a number" {
		t.Errorf("NormalizeE164 on garbage = %q, want input back", got)
	}
	if got := NormalizeE164(""); got != "" {
		t.Errorf("NormalizeE164 on empty = %q, want empty", got)
	}
}

func TestIsValidUS(t *testing.T) {
	if !IsValidUS("+12025550123") {
		t.Error("expected +12025550123 to be a valid US number")
	}
	if IsValidUS("+4915112345678") {
		t.Error("expected German number to fail US validation")
	}
	if IsValidUS("12345") {
		t.Error("expected short string to fail US validation")
	}
}
