package harnesserr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeMapsSentinelsToTable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil is ok", nil, ExitOK},
		{"not found is invariant", ErrNotFound, ExitInvariant},
		{"invalid transition is invariant", ErrInvalidTransition, ExitInvariant},
		{"invalid commit is invariant", ErrInvalidCommit, ExitInvariant},
		{"trailer mismatch is invariant", ErrTrailerMismatch, ExitInvariant},
		{"gate failure is invariant", ErrGateFailure, ExitInvariant},
		{"stale worktree is invariant", ErrStaleWorktreeRegistration, ExitInvariant},
		{"vcs failure is external", ErrVCSFailure, ExitExternalFailure},
		{"corrupt is io/corruption", ErrCorrupt, ExitIOCorruption},
		{"io error is io/corruption", ErrIOError, ExitIOCorruption},
		{"unknown error defaults to io/corruption", errors.New("mystery"), ExitIOCorruption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestExitCodeUnwrapsWrappedSentinels(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", ErrNotFound)
	assert.Equal(t, ExitInvariant, ExitCode(wrapped))
}
