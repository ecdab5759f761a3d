// Package commands implements the pytestlabctl command tree: bench
// inspection, record/replay sessions, and simulation-profile diagnostics.
package commands

import (
	"errors"

	pterrors "pytestlab/internal/errors"
)

// Exit codes follow the runtime's invariant that a caller can branch on
// $? without parsing stderr: 0 success, 1 validation/IO failure, 2 replay
// mismatch, 3 safety violation.
const (
	ExitOK              = 0
	ExitValidationOrIO  = 1
	ExitReplayMismatch  = 2
	ExitSafetyViolation = 3
)

// ExitCodeFor classifies err into one of the four documented exit codes.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}

	var mismatch *pterrors.ReplayMismatchError
	var exhausted *pterrors.ReplayExhausted
	if errors.As(err, &mismatch) || errors.As(err, &exhausted) {
		return ExitReplayMismatch
	}

	var safety *pterrors.SafetyLimitError
	if errors.As(err, &safety) {
		return ExitSafetyViolation
	}

	return ExitValidationOrIO
}
