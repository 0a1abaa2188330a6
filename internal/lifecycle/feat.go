package lifecycle

import (
	"fmt"

	"github.com/bagakit/ft-harness/internal/harnesserr"
	"github.com/bagakit/ft-harness/internal/model"
)

// DeriveFeatStatus computes the feat's status as a pure function of its
// tasks (§4.5 "Feat states", §3 "A feat's status is a pure function of its
// tasks' statuses and archive metadata"). explicitAbandon is true only when
// the operator has explicitly requested abandonment this call; it is not
// recoverable from task state alone.
func DeriveFeatStatus(current string, tasks []*model.Task, explicitAbandon bool) (string, error) {
	if current == model.FeatArchived {
		return "", fmt.Errorf("archived feats have no further transitions: %w", harnesserr.ErrInvalidTransition)
	}

	if explicitAbandon {
		if anyInProgress(tasks) {
			return "", fmt.Errorf("cannot abandon feat with a task in_progress: %w", harnesserr.ErrInvalidTransition)
		}
		return model.FeatAbandoned, nil
	}

	if current == model.FeatAbandoned {
		return model.FeatAbandoned, nil
	}

	if len(tasks) > 0 && allDone(tasks) {
		return model.FeatDone, nil
	}

	if anyStartedEver(tasks) {
		return model.FeatActive, nil
	}

	return current, nil
}

func anyInProgress(tasks []*model.Task) bool {
	for _, t := range tasks {
		if t.Status == model.TaskInProgress {
			return true
		}
	}
	return false
}

func allDone(tasks []*model.Task) bool {
	for _, t := range tasks {
		if t.Status != model.TaskDone {
			return false
		}
	}
	return true
}

// anyStartedEver reports whether any task has left the planned state, which
// per §4.5 is what promotes a feat from draft to active ("active as soon as
// the first task enters in_progress") and keeps it active thereafter even
// if that task later becomes blocked.
func anyStartedEver(tasks []*model.Task) bool {
	for _, t := range tasks {
		if t.Status != model.TaskPlanned {
			return true
		}
	}
	return false
}
