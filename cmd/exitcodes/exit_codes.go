package exitcodes

const (
	// ================================
	// Platform-universal exit codes
	// ================================

	// ExitCodeSuccess indicates no errors or failures had occurred.
	ExitCodeSuccess = 0

	// ExitCodeGeneralError indicates some type of general error occurred.
	ExitCodeGeneralError = 1

	// ================================
	// Application-specific exit codes
	// ================================
	// Note: Despite not being standardized, exit codes 2-5 are often used for common use cases, so we avoid them.

	// ExitCodeHandledError indicates that there was an error that was logged already and does not need to be handled
	// by main.
	ExitCodeHandledError = 6

	// ExitCodeHarnessError indicates the harness itself could not run challenges, for example because the chain or
	// the results database could not be set up.
	ExitCodeHarnessError = 7

	// ExitCodeChallengeFailed indicates at least one challenge did not pass its check.
	ExitCodeChallengeFailed = 8
)
