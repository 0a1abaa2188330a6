package lifecycle

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bagakit/ft-harness/internal/harnesserr"
	"github.com/bagakit/ft-harness/internal/model"
)

// taskImport is one entry of tasks.md's YAML front matter.
type taskImport struct {
	Title string `yaml:"title"`
}

type tasksMDFrontMatter struct {
	Tasks []taskImport `yaml:"tasks"`
}

// ParseTasksMD reads tasks.md's YAML front matter (delimited by leading and
// trailing "---" lines) and mints a dense, increasing T-NNN sequence for
// the declared tasks (§3 "Lifecycles": tasks are declared at creation in
// tasks.md / tasks.json). tasks.md is read once, at create-feat; tasks.json
// is the sole SSOT thereafter.
func ParseTasksMD(content []byte) ([]*model.Task, error) {
	front, err := extractFrontMatter(content)
	if err != nil {
		return nil, err
	}

	var doc tasksMDFrontMatter
	if err := yaml.Unmarshal(front, &doc); err != nil {
		return nil, fmt.Errorf("parsing tasks.md front matter: %w", harnesserr.ErrCorrupt)
	}

	tasks := make([]*model.Task, 0, len(doc.Tasks))
	var mintedIDs []string
	for _, ti := range doc.Tasks {
		title := strings.TrimSpace(ti.Title)
		if title == "" {
			return nil, fmt.Errorf("tasks.md declares a task with an empty title: %w", harnesserr.ErrCorrupt)
		}
		id := NextTaskID(mintedIDs)
		mintedIDs = append(mintedIDs, id)
		tasks = append(tasks, &model.Task{
			ID:           id,
			Title:        title,
			Status:       model.TaskPlanned,
			GateResult:   model.GateUnknown,
			GateEvidence: []model.GateEvidence{},
		})
	}
	return tasks, nil
}

// extractFrontMatter returns the YAML block between the first pair of lines
// that are exactly "---" (§ grounded on the teacher's markdown-frontmatter
// delimiter convention, decoded here with a real YAML library rather than
// a hand-rolled line scan).
func extractFrontMatter(content []byte) ([]byte, error) {
	s := string(content)
	if !strings.HasPrefix(s, "---\n") && s != "---" {
		return nil, fmt.Errorf("tasks.md has no YAML front matter: %w", harnesserr.ErrCorrupt)
	}
	rest := strings.TrimPrefix(s, "---\n")
	endIdx := strings.Index(rest, "\n---")
	if endIdx == -1 {
		return nil, fmt.Errorf("tasks.md front matter is unterminated: %w", harnesserr.ErrCorrupt)
	}
	return []byte(rest[:endIdx]), nil
}
