// Package model defines the entities persisted under .bagakit/ft-harness/:
// feats, tasks, the global index, and the project config document.
package model

import (
	"encoding/json"
	"time"
)

// Feat status values (§4.5 "Feat states").
const (
	FeatDraft     = "draft"
	FeatActive    = "active"
	FeatDone      = "done"
	FeatAbandoned = "abandoned"
	FeatArchived  = "archived"
)

// Task status values (§4.5 "Task states"). The narrative "committed" stage
// between a gate pass and finish-task is not a distinct persisted status —
// a task stays in_progress until FinishTask records it done; the commit's
// existence is tracked via Task.CommitSHA instead.
const (
	TaskPlanned    = "planned"
	TaskInProgress = "in_progress"
	TaskBlocked    = "blocked"
	TaskDone       = "done"
)

// Gate result values.
const (
	GateUnknown = "unknown"
	GatePass    = "pass"
	GateFail    = "fail"
)

// Feat is a deliverable spanning ordered tasks (§3 "Feat").
type Feat struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Goal         string     `json:"goal"`
	Slug         string     `json:"slug"`
	Status       string     `json:"status"`
	Branch       string     `json:"branch"`
	WorktreePath string     `json:"worktree_path"`
	BaseBranch   string     `json:"base_branch"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ArchivedAt   *time.Time `json:"archived_at,omitempty"`

	// Extra preserves unknown fields verbatim across load/normalize/write
	// cycles for forward compatibility (§4.1 "Normalization on read").
	Extra map[string]json.RawMessage `json:"-"`
}

var featKnownKeys = []string{
	"id", "title", "goal", "slug", "status", "branch",
	"worktree_path", "base_branch", "created_at", "updated_at", "archived_at",
}

// UnmarshalJSON decodes the known fields via an alias type, then captures
// any remaining keys into Extra so a later MarshalJSON can re-emit them.
func (f *Feat) UnmarshalJSON(data []byte) error {
	type alias Feat
	if err := json.Unmarshal(data, (*alias)(f)); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range featKnownKeys {
		delete(raw, k)
	}
	if len(raw) == 0 {
		f.Extra = nil
		return nil
	}
	f.Extra = raw
	return nil
}

// MarshalJSON encodes the known fields via an alias type, then merges in
// any Extra keys captured by a prior UnmarshalJSON (§4.1 "unknown fields
// are preserved verbatim").
func (f Feat) MarshalJSON() ([]byte, error) {
	type alias Feat
	b, err := json.Marshal((alias)(f))
	if err != nil {
		return nil, err
	}
	if len(f.Extra) == 0 {
		return b, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(b, &merged); err != nil {
		return nil, err
	}
	for k, v := range f.Extra {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// GateEvidence records one gate command invocation (§3 "Task").
type GateEvidence struct {
	RunID      string    `json:"run_id"`
	Command    string    `json:"command"`
	ExitCode   int       `json:"exit_code"`
	StdoutPath string    `json:"stdout_path"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Task is an atomic unit of work inside a feat (§3 "Task").
type Task struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Status       string         `json:"status"`
	GateResult   string         `json:"gate_result"`
	GateEvidence []GateEvidence `json:"gate_evidence"`
	CommitSHA    string         `json:"commit_sha,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`

	// Extra preserves unknown fields verbatim across load/normalize/write
	// cycles for forward compatibility (§4.1 "Normalization on read").
	Extra map[string]json.RawMessage `json:"-"`
}

var taskKnownKeys = []string{
	"id", "title", "status", "gate_result", "gate_evidence",
	"commit_sha", "started_at", "finished_at",
}

// UnmarshalJSON decodes the known fields via an alias type, then captures
// any remaining keys into Extra so a later MarshalJSON can re-emit them.
func (t *Task) UnmarshalJSON(data []byte) error {
	type alias Task
	if err := json.Unmarshal(data, (*alias)(t)); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range taskKnownKeys {
		delete(raw, k)
	}
	if len(raw) == 0 {
		t.Extra = nil
		return nil
	}
	t.Extra = raw
	return nil
}

// MarshalJSON encodes the known fields via an alias type, then merges in
// any Extra keys captured by a prior UnmarshalJSON (§4.1 "unknown fields
// are preserved verbatim").
func (t Task) MarshalJSON() ([]byte, error) {
	type alias Task
	b, err := json.Marshal((alias)(t))
	if err != nil {
		return nil, err
	}
	if len(t.Extra) == 0 {
		return b, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(b, &merged); err != nil {
		return nil, err
	}
	for k, v := range t.Extra {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// TasksDocument is the contents of tasks.json for one feat.
type TasksDocument struct {
	FeatID    string     `json:"feat_id"`
	Tasks     []*Task    `json:"tasks"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// StateDocument is the contents of state.json for one feat. It embeds the
// Feat directly since state.json *is* the feat's persisted representation.
type StateDocument struct {
	Feat
}

// IndexEntry is the compact descriptor kept in the global index (§3 "Index").
type IndexEntry struct {
	Title        string `json:"title"`
	Status       string `json:"status"`
	Branch       string `json:"branch"`
	WorktreePath string `json:"worktree_path"`
}

// IndexDocument is the contents of index/feats.json: an ordered mapping from
// feat-id to descriptor. Order is preserved via Order; Feats is keyed access.
type IndexDocument struct {
	Order     []string               `json:"order"`
	Feats     map[string]*IndexEntry `json:"feats"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// NewIndexDocument returns an empty, well-formed index document.
func NewIndexDocument() *IndexDocument {
	return &IndexDocument{
		Order: []string{},
		Feats: map[string]*IndexEntry{},
	}
}

// Put inserts or replaces a feat descriptor, appending to Order if new.
func (d *IndexDocument) Put(featID string, entry *IndexEntry) {
	if _, exists := d.Feats[featID]; !exists {
		d.Order = append(d.Order, featID)
	}
	d.Feats[featID] = entry
}

// Remove deletes a feat descriptor from both the map and the order slice.
func (d *IndexDocument) Remove(featID string) {
	if _, exists := d.Feats[featID]; !exists {
		return
	}
	delete(d.Feats, featID)
	out := d.Order[:0]
	for _, id := range d.Order {
		if id != featID {
			out = append(out, id)
		}
	}
	d.Order = out
}

// ProjectTypeRule is one ordered predicate in project_type_rules (§4.4).
type ProjectTypeRule struct {
	Name        string   `json:"name"`
	ProjectType string   `json:"project_type"` // "ui" | "non_ui"
	AnyFile     []string `json:"any_file,omitempty"`
}

// GateConfig holds the quality-gate configuration (§3 "Config").
type GateConfig struct {
	ProjectType     string            `json:"project_type"` // "ui" | "non_ui" | "auto"
	ProjectTypeRules []ProjectTypeRule `json:"project_type_rules,omitempty"`
	UIEvidencePath  string            `json:"ui_evidence_path"`
	NonUICommands   []string          `json:"non_ui_commands"`
	// NonUIMode selects "any" (at least one command must pass, default) or
	// "all" (strict AND) per spec.md §9 open question.
	NonUIMode string `json:"non_ui_mode,omitempty"`
	// TimeoutSeconds bounds each gate command's wall-clock time; 0 = no deadline (§5).
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// ArchivePolicy holds archive guard-rail configuration (§3 "Config").
type ArchivePolicy struct {
	RequireMerged bool `json:"require_merged"`
	RequireClean  bool `json:"require_clean"`
}

// DoctorThresholds holds doctor/validator configuration (§3 "Config").
type DoctorThresholds struct {
	MinGateEvidencePerDoneTask int `json:"min_gate_evidence_per_done_task,omitempty"`
}

// Config is the project-wide settings document (§3 "Config").
type Config struct {
	BaseBranch    string           `json:"base_branch"`
	WorktreesRoot string           `json:"worktrees_root"`
	Gate          GateConfig       `json:"gate"`
	Archive       ArchivePolicy    `json:"archive"`
	Doctor        DoctorThresholds `json:"doctor"`
}

// DefaultConfig returns the harness's built-in defaults (§4.1 load-then-default
// discipline is implemented by internal/config, which layers this document).
func DefaultConfig() *Config {
	return &Config{
		BaseBranch:    "main",
		WorktreesRoot: ".worktrees",
		Gate: GateConfig{
			ProjectType:   "auto",
			NonUIMode:     "any",
			UIEvidencePath: "ui-verification.md",
		},
		Archive: ArchivePolicy{
			RequireMerged: true,
			RequireClean:  true,
		},
		Doctor: DoctorThresholds{
			MinGateEvidencePerDoneTask: 1,
		},
	}
}
