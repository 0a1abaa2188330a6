// Package harnesserr defines the sentinel error taxonomy shared across the
// harness (§7 "Error handling design") and the CLI exit-code mapping.
package harnesserr

import "errors"

// Sentinel errors. Every returned error in a failure path wraps one of
// these with fmt.Errorf("...: %w", ...) so callers can use errors.Is.
var (
	ErrNotFound                  = errors.New("not found")
	ErrCorrupt                   = errors.New("corrupt document")
	ErrInvalidTransition         = errors.New("invalid state transition")
	ErrInvalidCommit             = errors.New("invalid commit message")
	ErrTrailerMismatch           = errors.New("commit trailer mismatch")
	ErrVCSFailure                = errors.New("version-control operation failed")
	ErrGateFailure               = errors.New("quality gate failed")
	ErrIOError                   = errors.New("io error")
	ErrStaleWorktreeRegistration = errors.New("stale worktree registration")
)

// Exit codes (§6 "Exit codes").
const (
	ExitOK               = 0
	ExitUsage            = 2
	ExitInvariant        = 3
	ExitExternalFailure  = 4
	ExitIOCorruption     = 5
)

// ExitCode maps an error (possibly wrapped) to the exit code table of §7.
// Unrecognized errors map to ExitIOCorruption, matching the "no partial
// writes, fail loud" posture of the SSOT layer.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrInvalidCommit),
		errors.Is(err, ErrTrailerMismatch),
		errors.Is(err, ErrGateFailure),
		errors.Is(err, ErrStaleWorktreeRegistration):
		return ExitInvariant
	case errors.Is(err, ErrVCSFailure):
		return ExitExternalFailure
	case errors.Is(err, ErrCorrupt), errors.Is(err, ErrIOError):
		return ExitIOCorruption
	default:
		return ExitIOCorruption
	}
}
