package lifecycle

import (
	"fmt"
	"strconv"
	"strings"
)

// NextTaskID scans tasks.json's task list for the maximum T-NNN id and
// returns the next one, zero-padded to three digits (§4.5 "Ordering &
// tie-breaks"). Concurrent mints are serialized by the caller holding the
// SSOT mutate-lock on tasks.json for the duration of this call plus the
// write that records it.
func NextTaskID(existingIDs []string) string {
	max := 0
	for _, id := range existingIDs {
		n, ok := parseTaskNumber(id)
		if ok && n > max {
			max = n
		}
	}
	return fmt.Sprintf("T-%03d", max+1)
}

func parseTaskNumber(id string) (int, bool) {
	if !strings.HasPrefix(id, "T-") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, "T-"))
	if err != nil {
		return 0, false
	}
	return n, true
}
