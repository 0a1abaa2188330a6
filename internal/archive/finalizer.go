// Package archive implements the archive finalizer (C7, §4.7): a single
// logical terminal transition composed of ordered sub-steps with
// compensating actions, grounded on the teacher's spec_archive.go guard-run
// shape (PopulateArchiveState → ArchiveGuards → mutate) but extended with
// the filesystem/VCS/index steps that guard check alone doesn't cover.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bagakit/ft-harness/internal/guards"
	"github.com/bagakit/ft-harness/internal/harnesserr"
	"github.com/bagakit/ft-harness/internal/layout"
	"github.com/bagakit/ft-harness/internal/model"
	"github.com/bagakit/ft-harness/internal/ssot"
	"github.com/bagakit/ft-harness/internal/vcsadapter"
	"github.com/bagakit/ft-harness/internal/worktree"
)

// LivingDocsSink is the external-collaborator seam for optional memory sync
// on archive (§1 "Out of scope", §4.7 step 6). The real implementation is
// out of this system's scope; NoopSink is wired in by default.
type LivingDocsSink interface {
	// Sync writes inbox files summarizing the archived feat. It must never
	// fail the archive — callers log but do not propagate its error.
	Sync(ctx context.Context, feat *model.Feat, tasks []*model.Task) error
}

// NoopSink is the default LivingDocsSink: it does nothing.
type NoopSink struct{}

func (NoopSink) Sync(context.Context, *model.Feat, []*model.Task) error { return nil }

// Finalizer runs the archive transition.
type Finalizer struct {
	Layout   *layout.Layout
	Git      *vcsadapter.Git
	Worktree *worktree.Manager
	Guards   *guards.Runner
	Sink     LivingDocsSink
}

// New returns a Finalizer wired to the given lower-level components. Sink
// defaults to NoopSink if nil.
func New(l *layout.Layout, g *vcsadapter.Git, w *worktree.Manager, sink LivingDocsSink) *Finalizer {
	if sink == nil {
		sink = NoopSink{}
	}
	return &Finalizer{Layout: l, Git: g, Worktree: w, Guards: guards.NewRunner(), Sink: sink}
}

// Report summarizes a completed archive for the caller (advisories and
// best-effort failures that did not abort the archive).
type Report struct {
	FeatID             string
	BranchDeleteFailed bool
	BranchDeleteErr    string
	Advisories         string
}

// Archive runs §4.7's ordered sub-steps. On any hard failure before step 2
// completes, no persisted change is made; from step 2 onward, compensating
// actions are applied per-step as documented.
func (f *Finalizer) Archive(ctx context.Context, featID string, force bool) (*Report, error) {
	state, err := ssot.Load[model.StateDocument](f.Layout.StatePath(featID))
	if err != nil {
		return nil, err
	}
	ssot.NormalizeFeat(&state.Feat)
	feat := &state.Feat

	// Step 1: precondition check.
	gctx := &guards.GuardContext{FeatID: featID, Force: force}
	if err := guards.PopulateArchiveState(ctx, f.Layout, f.Git, feat, gctx); err != nil {
		return nil, err
	}
	outcome := f.Guards.Run(ctx, gctx, guards.ArchiveGuards())
	if outcome.Blocked {
		return nil, fmt.Errorf("%s: %w", outcome.FormatBlockMessage(), harnesserr.ErrInvalidTransition)
	}
	report := &Report{FeatID: featID, Advisories: outcome.FormatAdvisoryMessage()}

	tasksDoc, err := ssot.Load[model.TasksDocument](f.Layout.TasksPath(featID))
	if err != nil {
		return nil, err
	}
	ssot.NormalizeTasksDocument(tasksDoc)

	// Step 2: relocate state (active dir -> archived dir). Atomic rename;
	// on failure, abort with no further steps (§4.7 step 2).
	activeDir := f.Layout.FeatDir(featID)
	archivedDir := f.Layout.ArchivedFeatDir(featID)
	if err := os.MkdirAll(filepath.Dir(archivedDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating feats-archived dir: %w", harnesserr.ErrIOError)
	}
	if err := os.Rename(activeDir, archivedDir); err != nil {
		return nil, fmt.Errorf("relocating %s to %s: %w", activeDir, archivedDir, harnesserr.ErrIOError)
	}

	// Step 3: remove worktree. On failure, restore the state directory and
	// abort (§4.7 step 3).
	if err := f.Worktree.Remove(ctx, featID, force); err != nil {
		if rerr := os.Rename(archivedDir, activeDir); rerr != nil {
			return nil, fmt.Errorf("removing worktree failed (%v) and rollback of relocation also failed: %w", err, harnesserr.ErrIOError)
		}
		return nil, err
	}

	// Step 4: delete branch. Best-effort; reported, never aborts (§4.7 step 4).
	if delErr := f.Git.DeleteBranch(ctx, feat.Branch, force); delErr != nil {
		report.BranchDeleteFailed = true
		report.BranchDeleteErr = delErr.Error()
	}

	// Step 5: update index.
	if _, err := ssot.Mutate(f.Layout.IndexPath(), func(doc *model.IndexDocument) error {
		doc.Remove(featID)
		doc.UpdatedAt = ssot.TouchUpdatedAt(doc.UpdatedAt, time.Now().UTC())
		return nil
	}); err != nil {
		return nil, err
	}

	// Step 6: optional memory sync. Best-effort; never fails the archive.
	_ = f.Sink.Sync(ctx, feat, tasksDoc.Tasks)

	// Step 7: set status=archived, archived_at=now, persisted at the new
	// location.
	now := time.Now().UTC()
	archivedStatePath := filepath.Join(archivedDir, "state.json")
	if _, err := ssot.Mutate(archivedStatePath, func(doc *model.StateDocument) error {
		doc.Status = model.FeatArchived
		doc.ArchivedAt = &now
		doc.UpdatedAt = ssot.TouchUpdatedAt(doc.UpdatedAt, now)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := f.checkPostConditions(ctx, featID, feat.WorktreePath); err != nil {
		return nil, err
	}

	return report, nil
}

// checkPostConditions verifies §4.7's five post-conditions before Archive
// returns success.
func (f *Finalizer) checkPostConditions(ctx context.Context, featID, worktreePath string) error {
	if _, err := os.Stat(f.Layout.FeatDir(featID)); err == nil {
		return fmt.Errorf("active feat dir still exists after archive: %w", harnesserr.ErrStaleWorktreeRegistration)
	}
	if _, err := os.Stat(f.Layout.ArchivedFeatDir(featID)); err != nil {
		return fmt.Errorf("archived feat dir missing after archive: %w", harnesserr.ErrIOError)
	}
	if _, err := os.Stat(worktreePath); err == nil {
		return fmt.Errorf("worktree dir %s still exists after archive: %w", worktreePath, harnesserr.ErrStaleWorktreeRegistration)
	}
	registered, err := f.Git.ListWorktrees(ctx)
	if err != nil {
		return err
	}
	if registered[worktreePath] {
		return fmt.Errorf("VCS worktree registry still lists %s: %w", worktreePath, harnesserr.ErrStaleWorktreeRegistration)
	}
	idx, err := ssot.Load[model.IndexDocument](f.Layout.IndexPath())
	if err != nil {
		return err
	}
	if _, exists := idx.Feats[featID]; exists {
		return fmt.Errorf("index still lists %s: %w", featID, harnesserr.ErrStaleWorktreeRegistration)
	}
	return nil
}
