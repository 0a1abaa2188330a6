// Package doctor implements the cross-reference audit (C8, §4.8): SSOT vs.
// filesystem vs. VCS, reported as Issues. It is strictly read-only and
// never mutates state. Grounded on the teacher's janitor Issue/Report
// shape, retargeted from knowledge-graph entities to feats/tasks.
package doctor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bagakit/ft-harness/internal/layout"
	"github.com/bagakit/ft-harness/internal/model"
	"github.com/bagakit/ft-harness/internal/ssot"
	"github.com/bagakit/ft-harness/internal/vcsadapter"
)

// Issue is one detected problem.
type Issue struct {
	Severity    string `json:"severity"` // critical, warning
	Type        string `json:"type"`
	FeatID      string `json:"feat_id"`
	Description string `json:"description"`
}

// Report summarizes a doctor run.
type Report struct {
	Timestamp      string  `json:"timestamp"`
	FeatsChecked   int     `json:"feats_checked"`
	CriticalIssues int     `json:"critical_issues"`
	Warnings       int     `json:"warnings"`
	Issues         []Issue `json:"issues"`
}

// Doctor runs the cross-reference audit.
type Doctor struct {
	Layout *layout.Layout
	Git    *vcsadapter.Git
	Config model.Config
}

// New returns a Doctor wired to the given layout/VCS adapter/config.
func New(l *layout.Layout, g *vcsadapter.Git, cfg model.Config) *Doctor {
	return &Doctor{Layout: l, Git: g, Config: cfg}
}

// Run audits every feat the index lists (§4.8 "SSOT presence, VCS branch
// presence, worktree registry entry, directory existence, HEAD branch,
// cleanliness, gate evidence counts vs. configured thresholds").
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{Timestamp: time.Now().UTC().Format(time.RFC3339), Issues: []Issue{}}

	idx, err := ssot.Load[model.IndexDocument](d.Layout.IndexPath())
	if err != nil {
		return nil, err
	}

	registered, err := d.Git.ListWorktrees(ctx)
	if err != nil {
		return nil, err
	}

	for _, featID := range idx.Order {
		report.FeatsChecked++
		d.checkFeat(ctx, featID, idx.Feats[featID], registered, report)
	}

	for _, issue := range report.Issues {
		switch issue.Severity {
		case "critical":
			report.CriticalIssues++
		case "warning":
			report.Warnings++
		}
	}
	return report, nil
}

func (d *Doctor) checkFeat(ctx context.Context, featID string, entry *model.IndexEntry, registered map[string]bool, report *Report) {
	add := func(severity, typ, desc string) {
		report.Issues = append(report.Issues, Issue{Severity: severity, Type: typ, FeatID: featID, Description: desc})
	}

	state, err := ssot.Load[model.StateDocument](d.Layout.StatePath(featID))
	if err != nil {
		add("critical", "MissingState", fmt.Sprintf("state.json for %s is missing or corrupt: %v", featID, err))
		return
	}
	ssot.NormalizeFeat(&state.Feat)

	if _, err := os.Stat(state.WorktreePath); err != nil {
		add("critical", "WorktreeMissing", fmt.Sprintf("worktree directory %s does not exist", state.WorktreePath))
	} else {
		if !registered[state.WorktreePath] {
			add("critical", "WorktreeNotRegistered", fmt.Sprintf("VCS worktree registry does not list %s", state.WorktreePath))
		}
		head, err := d.Git.HeadBranch(ctx, state.WorktreePath)
		expected := "feat/" + featID
		if err == nil && head != expected {
			add("warning", "HeadMismatch", fmt.Sprintf("worktree HEAD is %q, expected %q", head, expected))
		}
		clean, err := d.Git.WorktreeIsClean(ctx, state.WorktreePath)
		if err == nil && !clean {
			add("warning", "WorktreeDirty", fmt.Sprintf("worktree %s has uncommitted changes", state.WorktreePath))
		}
	}

	tasksDoc, err := ssot.Load[model.TasksDocument](d.Layout.TasksPath(featID))
	if err != nil {
		add("critical", "MissingTasks", fmt.Sprintf("tasks.json for %s is missing or corrupt: %v", featID, err))
		return
	}
	ssot.NormalizeTasksDocument(tasksDoc)

	inProgress := 0
	for _, t := range tasksDoc.Tasks {
		if t.Status == model.TaskInProgress {
			inProgress++
		}
		if t.Status == model.TaskDone {
			if t.GateResult != model.GatePass || t.CommitSHA == "" {
				add("critical", "InvalidDoneTask", fmt.Sprintf("%s/%s is done but gate_result=%q commit_sha=%q", featID, t.ID, t.GateResult, t.CommitSHA))
			}
			if d.Config.Doctor.MinGateEvidencePerDoneTask > 0 && len(t.GateEvidence) < d.Config.Doctor.MinGateEvidencePerDoneTask {
				add("warning", "InsufficientGateEvidence", fmt.Sprintf("%s/%s has %d gate evidence records, want >= %d", featID, t.ID, len(t.GateEvidence), d.Config.Doctor.MinGateEvidencePerDoneTask))
			}
		}
	}
	if inProgress > 1 {
		add("critical", "MultipleInProgress", fmt.Sprintf("feat %s has %d tasks in_progress, expected at most 1", featID, inProgress))
	}

	if entry != nil && entry.Status != state.Status {
		add("warning", "IndexStatusDrift", fmt.Sprintf("index status %q does not match state.json status %q for %s", entry.Status, state.Status, featID))
	}
}
