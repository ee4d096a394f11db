package domain

import "testing"

func TestNormalizeZip(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"30301", "30301"},
		{"30301-1234", "30301"},
		{"303011234", "30301"},
		{" 30301 ", "30301"},
		{"3030", "3030"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeZip(tc.in); got != tc.want {
			t.Errorf("NormalizeZip(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLeadName(t *testing.T) {
	lead := Lead{FirstName: "Pat", LastName: "Doe"}
	if got := lead.Name(); got != "Pat Doe" {
		t.Errorf("Name() = %q, want %q", got, "Pat Doe")
	}
	if got := (Lead{FirstName: "Pat"}).Name(); got != "Pat" {
		t.Errorf("Name() with no last name = %q, want %q", got, "Pat")
	}
}

func TestStatusValid(t *testing.T) {
	for _, status := range AllStatuses {
		if !status.Valid() {
			t.Errorf("status %s reported invalid", status)
		}
	}
	if Status("ARCHIVED").Valid() {
		t.Error("unknown status reported valid")
	}
}
