package calls

import "testing"

func TestOutcomeFromState(t *testing.T) {
	cases := []struct {
		state string
		want  string
	}{
		{"ANSWER", OutcomeCompleted},
		{"NO_ANSWER", OutcomeNoAnswer},
		{"BUSY", OutcomeNoAnswer},
		{"TIMEOUT", OutcomeNoAnswer},
		{"FAILED", OutcomeFailed},
		{"EARLY MEDIA", OutcomeFailed},
		{"", OutcomeUnresolved},
		{"SOMETHING_NEW", OutcomeFailed},
		// The hangup webhook and live lookups use the lower-case status
		// vocabulary; a cached webhook state must resolve the same way.
		{"completed", OutcomeCompleted},
		{"no-answer", OutcomeNoAnswer},
		{"busy", OutcomeNoAnswer},
		{"timeout", OutcomeNoAnswer},
		{"failed", OutcomeFailed},
		{"ringing", OutcomeLive},
		{"in-progress", OutcomeLive},
	}
	for _, tc := range cases {
		if got := OutcomeFromState(tc.state); got != tc.want {
			t.Errorf("OutcomeFromState(%q) = %q, want %q", tc.state, got, tc.want)
		}
	}
}

func TestOutcomeFromHangupCause(t *testing.T) {
	cases := []struct {
		cause string
		want  string
	}{
		{"NORMAL_CLEARING", OutcomeCompleted},
		{"NO_ANSWER", OutcomeNoAnswer},
		{"NO_USER_RESPONSE", OutcomeNoAnswer},
		{"USER_BUSY", OutcomeNoAnswer},
		{"", OutcomeUnresolved},
		{"LOSE_RACE", OutcomeFailed},
		{"UNALLOCATED_NUMBER", OutcomeFailed},
	}
	for _, tc := range cases {
		if got := OutcomeFromHangupCause(tc.cause); got != tc.want {
			t.Errorf("OutcomeFromHangupCause(%q) = %q, want %q", tc.cause, got, tc.want)
		}
	}
}

func TestCanonicalOutcomeHangupCauseWins(t *testing.T) {
	// The hangup cause carries the reason the call ended even when the
	// call state disagrees.
	if got := CanonicalOutcome("ANSWER", "USER_BUSY"); got != OutcomeNoAnswer {
		t.Errorf("CanonicalOutcome(ANSWER, USER_BUSY) = %q, want %q", got, OutcomeNoAnswer)
	}
	if got := CanonicalOutcome("FAILED", "NORMAL_CLEARING"); got != OutcomeCompleted {
		t.Errorf("CanonicalOutcome(FAILED, NORMAL_CLEARING) = %q, want %q", got, OutcomeCompleted)
	}
}

func TestCanonicalOutcomeFallsBackToState(t *testing.T) {
	if got := CanonicalOutcome("ANSWER", ""); got != OutcomeCompleted {
		t.Errorf("CanonicalOutcome(ANSWER, \"\") = %q, want %q", got, OutcomeCompleted)
	}
	if got := CanonicalOutcome("", ""); got != OutcomeUnresolved {
		t.Errorf("CanonicalOutcome(\"\", \"\") = %q, want %q", got, OutcomeUnresolved)
	}
	if got := CanonicalOutcome("completed", ""); got != OutcomeCompleted {
		t.Errorf("CanonicalOutcome(completed, \"\") = %q, want %q", got, OutcomeCompleted)
	}
	if got := CanonicalOutcome("no-answer", ""); got != OutcomeNoAnswer {
		t.Errorf("CanonicalOutcome(no-answer, \"\") = %q, want %q", got, OutcomeNoAnswer)
	}
}

func TestContactStatusForOutcome(t *testing.T) {
	cases := []struct {
		outcome  string
		want     string
		terminal bool
	}{
		{OutcomeCompleted, "completed", true},
		{OutcomeNoAnswer, "no-answer", true},
		{OutcomeFailed, "failed", true},
		{OutcomeLive, "", false},
		{OutcomeUnresolved, "", false},
	}
	for _, tc := range cases {
		got, terminal := ContactStatusForOutcome(tc.outcome)
		if got != tc.want || terminal != tc.terminal {
			t.Errorf("ContactStatusForOutcome(%q) = (%q, %t), want (%q, %t)",
				tc.outcome, got, terminal, tc.want, tc.terminal)
		}
	}
}
