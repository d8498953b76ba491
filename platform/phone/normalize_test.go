package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"+31612345678", "+31612345678"},
		{" +31 6 1234 5678 ", "+31612345678"},
		{"09876543210", "+919876543210"},
		{"not a number", "not a number"},
		{"", ""},
		{"  ", ""},
	}
	for _, tc := range cases {
		if got := NormalizeE164(tc.input); got != tc.want {
			t.Errorf("NormalizeE164(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
