package ssot

import (
	"time"

	"github.com/bagakit/ft-harness/internal/model"
)

// TouchUpdatedAt advances updatedAt to the current time in RFC-3339 UTC,
// guaranteeing monotonic advance across writes to the same file (§3
// "Updated_at monotonically advances"). now is injected so callers in tests
// can pin the clock.
func TouchUpdatedAt(current time.Time, now time.Time) time.Time {
	now = now.UTC()
	if !now.After(current) {
		// Never regress: if the clock hasn't visibly advanced, bump by 1ns
		// so strictly-monotonic comparisons in tests and the doctor hold.
		now = current.Add(time.Nanosecond)
	}
	return now
}

// NormalizeFeat fills defaults for a freshly-loaded Feat and ensures status
// has a value (§4.1 "Normalization on read").
func NormalizeFeat(f *model.Feat) {
	if f.Status == "" {
		f.Status = model.FeatDraft
	}
}

// NormalizeTask fills defaults for a freshly-loaded Task.
func NormalizeTask(t *model.Task) {
	if t.Status == "" {
		t.Status = model.TaskPlanned
	}
	if t.GateResult == "" {
		t.GateResult = model.GateUnknown
	}
	if t.GateEvidence == nil {
		t.GateEvidence = []model.GateEvidence{}
	}
}

// NormalizeTasksDocument normalizes every task in the document.
func NormalizeTasksDocument(doc *model.TasksDocument) {
	for _, t := range doc.Tasks {
		NormalizeTask(t)
	}
}
