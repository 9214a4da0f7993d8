// Package exitcodes defines the process exit codes used by ptw.
//
// * Success (0): every test passed, possibly after retries
// * TestFailure (1): at least one test group still fails after the last attempt
// * Fatal (2): the supervisor forced termination of the worker (timeout, dead worker, confirmed crash)
package exitcodes

import (
	"fmt"

	"ptw/internal/domain"
)

const (
	Success     = 0
	TestFailure = 1
	Fatal       = 2
)

// FromAttempt maps an attempt result to an exit code
func FromAttempt(res domain.AttemptResult) int {
	switch {
	case res.State.IsFatal():
		return Fatal
	case res.Verdict:
		return Success
	default:
		return TestFailure
	}
}

// ExitError asks the program to exit with Code without printing anything
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}
