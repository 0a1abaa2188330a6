// Package lifecycle implements the feat/task state machine (C5, §4.5): pure
// transition validation, task-id minting, and tasks.md import parsing. Per
// §9's design note, transitions are modelled as tagged-variant status plus
// pure transition functions, not a class hierarchy — side effects (SSOT
// writes, VCS calls, gate runs) are sequenced by internal/lifecycle's Engine
// only after the pure transition validates.
package lifecycle

import (
	"fmt"

	"github.com/bagakit/ft-harness/internal/harnesserr"
	"github.com/bagakit/ft-harness/internal/model"
)

// Task events drive the pure task transition function.
const (
	EventStart        = "start"
	EventFinishDone    = "finish_done"
	EventFinishBlocked = "finish_blocked"
)

var taskTransitions = map[string][]string{
	model.TaskPlanned:    {model.TaskInProgress},
	model.TaskInProgress: {model.TaskDone, model.TaskBlocked},
	model.TaskBlocked:    {model.TaskInProgress},
	model.TaskDone:       {}, // terminal
}

var taskEventTarget = map[string]string{
	EventStart:         model.TaskInProgress,
	EventFinishDone:    model.TaskDone,
	EventFinishBlocked: model.TaskBlocked,
}

// ValidateTaskTransition checks whether event is allowed from the current
// task status, returning the target status on success. No persisted change
// is implied — callers apply the transition only after all preconditions
// for the specific event (§4.5's table) also hold.
func ValidateTaskTransition(from, event string) (string, error) {
	to, ok := taskEventTarget[event]
	if !ok {
		return "", fmt.Errorf("unknown task event %q: %w", event, harnesserr.ErrInvalidTransition)
	}
	if !isAllowedTransition(from, to, taskTransitions) {
		return "", transitionError(from, to)
	}
	return to, nil
}

func isAllowedTransition(from, to string, transitions map[string][]string) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	for _, t := range allowed {
		if t == to {
			return true
		}
	}
	return false
}

func transitionError(from, to string) error {
	return fmt.Errorf("cannot transition from %q to %q: %w", from, to, harnesserr.ErrInvalidTransition)
}
