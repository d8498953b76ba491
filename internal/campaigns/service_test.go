package campaigns

import "testing"

func transitionPermitted(from, to string) bool {
	allowed, ok := validTransitions[to]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == from {
			return true
		}
	}
	return false
}

func TestValidTransitions(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{StatusCreated, StatusRunning, true},
		{StatusCreated, StatusScheduled, true},
		{StatusScheduled, StatusRunning, true},
		{StatusRunning, StatusPaused, true},
		{StatusPaused, StatusRunning, true},
		{StatusPaused, StatusScheduled, true},

		// Completion belongs to the dialer, not the API.
		{StatusRunning, StatusCompleted, false},
		{StatusCompleted, StatusRunning, false},
		{StatusCreated, StatusPaused, false},
		{StatusRunning, "bogus", false},
	}
	for _, tc := range cases {
		if got := transitionPermitted(tc.from, tc.to); got != tc.want {
			t.Errorf("transition %s -> %s = %t, want %t", tc.from, tc.to, got, tc.want)
		}
	}
}
