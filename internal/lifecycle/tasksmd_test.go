package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bagakit/ft-harness/internal/harnesserr"
	"github.com/bagakit/ft-harness/internal/model"
)

func TestParseTasksMDMintsDenseSequence(t *testing.T) {
	content := []byte("---\ntasks:\n  - title: set up scaffolding\n  - title: wire the API\n  - title: write docs\n---\n")

	tasks, err := ParseTasksMD(content)
	assert.NoError(t, err)
	assert.Len(t, tasks, 3)
	assert.Equal(t, "T-001", tasks[0].ID)
	assert.Equal(t, "T-002", tasks[1].ID)
	assert.Equal(t, "T-003", tasks[2].ID)
	for _, task := range tasks {
		assert.Equal(t, model.TaskPlanned, task.Status)
		assert.Equal(t, model.GateUnknown, task.GateResult)
		assert.NotNil(t, task.GateEvidence)
	}
}

func TestParseTasksMDRejectsMissingFrontMatter(t *testing.T) {
	_, err := ParseTasksMD([]byte("# just a heading\n"))
	assert.ErrorIs(t, err, harnesserr.ErrCorrupt)
}

func TestParseTasksMDRejectsUnterminatedFrontMatter(t *testing.T) {
	_, err := ParseTasksMD([]byte("---\ntasks:\n  - title: x\n"))
	assert.ErrorIs(t, err, harnesserr.ErrCorrupt)
}

func TestParseTasksMDRejectsEmptyTitle(t *testing.T) {
	_, err := ParseTasksMD([]byte("---\ntasks:\n  - title: \"  \"\n---\n"))
	assert.ErrorIs(t, err, harnesserr.ErrCorrupt)
}

func TestParseTasksMDEmptyListYieldsNoTasks(t *testing.T) {
	tasks, err := ParseTasksMD([]byte("---\ntasks: []\n---\n"))
	assert.NoError(t, err)
	assert.Empty(t, tasks)
}
