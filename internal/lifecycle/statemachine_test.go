package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bagakit/ft-harness/internal/harnesserr"
	"github.com/bagakit/ft-harness/internal/model"
)

func TestValidateTaskTransitionAllowedPaths(t *testing.T) {
	tests := []struct {
		name  string
		from  string
		event string
		want  string
	}{
		{"planned starts", model.TaskPlanned, EventStart, model.TaskInProgress},
		{"in_progress finishes done", model.TaskInProgress, EventFinishDone, model.TaskDone},
		{"in_progress finishes blocked", model.TaskInProgress, EventFinishBlocked, model.TaskBlocked},
		{"blocked restarts", model.TaskBlocked, EventStart, model.TaskInProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateTaskTransition(tt.from, tt.event)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateTaskTransitionRejectedPaths(t *testing.T) {
	tests := []struct {
		name  string
		from  string
		event string
	}{
		{"planned cannot finish done", model.TaskPlanned, EventFinishDone},
		{"planned cannot finish blocked", model.TaskPlanned, EventFinishBlocked},
		{"done is terminal", model.TaskDone, EventStart},
		{"blocked cannot finish done directly", model.TaskBlocked, EventFinishDone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateTaskTransition(tt.from, tt.event)
			assert.ErrorIs(t, err, harnesserr.ErrInvalidTransition)
		})
	}
}

func TestValidateTaskTransitionUnknownEvent(t *testing.T) {
	_, err := ValidateTaskTransition(model.TaskPlanned, "nonsense")
	assert.ErrorIs(t, err, harnesserr.ErrInvalidTransition)
}
