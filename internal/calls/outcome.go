package calls

// Canonical outcomes. Every place that infers "is this call over" goes
// through this mapping, whether the signal came from a webhook, a live
// call lookup or a historical call record.
const (
	OutcomeLive       = "live"
	OutcomeCompleted  = "completed"
	OutcomeNoAnswer   = "no-answer"
	OutcomeFailed     = "failed"
	OutcomeUnresolved = "unresolved"
)

// OutcomeFromState maps a provider call state to a canonical outcome.
// The provider speaks two vocabularies for the same thing: call detail
// records carry upper-case states while the hangup webhook and live
// lookups carry lower-case statuses. Both map here so the poll loop
// and the webhook path agree on what a stored state means.
func OutcomeFromState(callState string) string {
	switch callState {
	case "ANSWER", "completed":
		return OutcomeCompleted
	case "NO_ANSWER", "BUSY", "TIMEOUT", "no-answer", "busy", "timeout":
		return OutcomeNoAnswer
	case "FAILED", "EARLY MEDIA", "failed":
		return OutcomeFailed
	case "ringing", "in-progress":
		return OutcomeLive
	case "":
		return OutcomeUnresolved
	default:
		return OutcomeFailed
	}
}

// OutcomeFromHangupCause maps a provider hangup cause to a canonical
// outcome.
func OutcomeFromHangupCause(hangupCause string) string {
	switch hangupCause {
	case "NORMAL_CLEARING":
		return OutcomeCompleted
	case "NO_ANSWER", "NO_USER_RESPONSE", "USER_BUSY":
		return OutcomeNoAnswer
	case "":
		return OutcomeUnresolved
	default:
		return OutcomeFailed
	}
}

// CanonicalOutcome resolves the terminal outcome for a call given both
// signals. The hangup cause is authoritative when present, because call
// state and hangup cause can disagree and the cause carries the reason
// the call actually ended.
func CanonicalOutcome(callState, hangupCause string) string {
	if outcome := OutcomeFromHangupCause(hangupCause); outcome != OutcomeUnresolved {
		return outcome
	}
	return OutcomeFromState(callState)
}

// ContactStatusForOutcome translates a terminal canonical outcome into
// the contact status it implies. Returns false for non-terminal outcomes.
func ContactStatusForOutcome(outcome string) (string, bool) {
	switch outcome {
	case OutcomeCompleted:
		return "completed", true
	case OutcomeNoAnswer:
		return "no-answer", true
	case OutcomeFailed:
		return "failed", true
	default:
		return "", false
	}
}
