package ssot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bagakit/ft-harness/internal/model"
)

func TestTouchUpdatedAtAdvancesOnNewerClock(t *testing.T) {
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	got := TouchUpdatedAt(current, now)
	assert.Equal(t, now, got)
	assert.True(t, got.After(current))
}

func TestTouchUpdatedAtNeverRegresses(t *testing.T) {
	current := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) // stale clock

	got := TouchUpdatedAt(current, now)
	assert.True(t, got.After(current), "updated_at must monotonically advance even with a stale clock input")
}

func TestTouchUpdatedAtBumpsWhenClockDidNotVisiblyAdvance(t *testing.T) {
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	got := TouchUpdatedAt(current, current)
	assert.True(t, got.After(current))
	assert.Equal(t, current.Add(time.Nanosecond), got)
}

func TestNormalizeFeatDefaultsEmptyStatus(t *testing.T) {
	f := &model.Feat{}
	NormalizeFeat(f)
	assert.Equal(t, model.FeatDraft, f.Status)
}

func TestNormalizeFeatPreservesExistingStatus(t *testing.T) {
	f := &model.Feat{Status: model.FeatActive}
	NormalizeFeat(f)
	assert.Equal(t, model.FeatActive, f.Status)
}

func TestNormalizeTaskFillsDefaults(t *testing.T) {
	task := &model.Task{}
	NormalizeTask(task)
	assert.Equal(t, model.TaskPlanned, task.Status)
	assert.Equal(t, model.GateUnknown, task.GateResult)
	assert.NotNil(t, task.GateEvidence)
	assert.Empty(t, task.GateEvidence)
}

func TestNormalizeTasksDocumentNormalizesEveryTask(t *testing.T) {
	doc := &model.TasksDocument{
		Tasks: []*model.Task{{ID: "T-001"}, {ID: "T-002", Status: model.TaskDone}},
	}
	NormalizeTasksDocument(doc)
	assert.Equal(t, model.TaskPlanned, doc.Tasks[0].Status)
	assert.Equal(t, model.TaskDone, doc.Tasks[1].Status)
}
