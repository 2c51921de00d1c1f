package verify

// Mode selects how the decision gate treats a run that did not succeed.
type Mode int

const (
	// Interactive asks the operator before proceeding past failures.
	Interactive Mode = iota

	// Unattended never asks and never proceeds past failures.
	Unattended

	// TestMode proceeds without asking so automated boot tests can
	// exercise the failure display and still continue the chain.
	TestMode
)

type Decision int

const (
	// Proceed allows the chain-load, preceded by the countdown.
	Proceed Decision = iota

	// ConfirmRequired allows the chain-load only after an explicit
	// affirmative from the operator; confirmation skips the countdown.
	ConfirmRequired

	Terminate
)

// Decide applies the fail-closed gate. A detected failure never leads
// to an automatic chain-load outside of test mode. Cancellation with a
// clean record proceeds: the operator chose to skip verification.
// Failures recorded before a cancellation still count.
func Decide(res RunResult, mode Mode) Decision {
	if res.Cancelled && len(res.Failures) == 0 {
		return Proceed
	}
	if res.Status == Success {
		return Proceed
	}
	switch mode {
	case TestMode:
		return Proceed
	case Unattended:
		return Terminate
	default:
		return ConfirmRequired
	}
}
