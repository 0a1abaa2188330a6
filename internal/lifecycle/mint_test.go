package lifecycle

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextTaskIDStartsAtOne(t *testing.T) {
	assert.Equal(t, "T-001", NextTaskID(nil))
	assert.Equal(t, "T-001", NextTaskID([]string{}))
}

func TestNextTaskIDIncrementsFromMax(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		want     string
	}{
		{"sequential", []string{"T-001", "T-002"}, "T-003"},
		{"out of order", []string{"T-003", "T-001", "T-002"}, "T-004"},
		{"ignores malformed ids", []string{"T-001", "not-a-task-id", "T-2x"}, "T-002"},
		{"pads to three digits", []string{"T-009"}, "T-010"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextTaskID(tt.existing))
		})
	}
}

// TestNextTaskIDUniqueUnderSerializedMinting mirrors the caller contract
// documented on NextTaskID: concurrent callers must serialize (via the SSOT
// mutate-lock) so each mint observes the previous mint's result. This test
// simulates that serialization directly and asserts the minted set has no
// duplicates.
func TestNextTaskIDUniqueUnderSerializedMinting(t *testing.T) {
	var mu sync.Mutex
	var existing []string
	seen := map[string]bool{}

	var wg sync.WaitGroup
	const n = 25
	results := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			id := NextTaskID(existing)
			existing = append(existing, id)
			results <- id
		}()
	}
	wg.Wait()
	close(results)

	for id := range results {
		assert.False(t, seen[id], fmt.Sprintf("duplicate minted id %s", id))
		seen[id] = true
	}
	assert.Len(t, seen, n)
}
