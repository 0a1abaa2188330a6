package archive

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bagakit/ft-harness/internal/gate"
	"github.com/bagakit/ft-harness/internal/guards"
	"github.com/bagakit/ft-harness/internal/harnesserr"
	"github.com/bagakit/ft-harness/internal/layout"
	"github.com/bagakit/ft-harness/internal/lifecycle"
	"github.com/bagakit/ft-harness/internal/model"
	"github.com/bagakit/ft-harness/internal/ssot"
	"github.com/bagakit/ft-harness/internal/vcsadapter"
	"github.com/bagakit/ft-harness/internal/worktree"
)

func gitIn(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v: %s", args, err, out)
	}
	return string(out)
}

type fixture struct {
	Layout    *layout.Layout
	Git       *vcsadapter.Git
	Worktree  *worktree.Manager
	Engine    *lifecycle.Engine
	Finalizer *Finalizer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	gitIn(t, root, "init", "-b", "main")
	assert.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("hello\n"), 0o644))
	gitIn(t, root, "add", "README.md")
	gitIn(t, root, "commit", "-m", "initial commit")

	l := layout.New(root)
	git := vcsadapter.New(root)
	wt := worktree.New(l, git, ".worktrees")
	gt := gate.New(l)
	eng := lifecycle.New(l, git, wt, gt)
	return &fixture{Layout: l, Git: git, Worktree: wt, Engine: eng, Finalizer: New(l, git, wt, nil)}
}

// driveToDone creates a one-task feat and drives it all the way through
// start/gate/commit/finish so it reaches the done status merged into base.
func driveToDone(t *testing.T, f *fixture) *model.Feat {
	t.Helper()
	ctx := context.Background()
	tasksMD := "---\ntasks:\n  - title: build the thing\n---\n"

	feat, err := f.Engine.CreateFeat(ctx, "Widget Feature", "ship widget", "widget", "main", []byte(tasksMD), false, "", guards.AlwaysReady{})
	assert.NoError(t, err)

	task, err := f.Engine.StartTask(ctx, feat.ID, "")
	assert.NoError(t, err)

	cfg := model.GateConfig{ProjectType: gate.ProjectTypeNonUI, NonUICommands: []string{"exit 0"}}
	_, err = f.Engine.RunTaskGate(ctx, feat.ID, task.ID, cfg)
	assert.NoError(t, err)

	assert.NoError(t, os.WriteFile(filepath.Join(feat.WorktreePath, "widget.go"), []byte("package widget\n"), 0o644))
	gitIn(t, feat.WorktreePath, "add", "widget.go")

	msgPath, err := f.Engine.PrepareTaskCommit(ctx, feat.ID, task.ID, lifecycle.PrepareTaskCommitInput{
		Summary: "build the thing", Plan: "add widget", Check: "exit 0", Learn: "none",
	})
	assert.NoError(t, err)
	gitIn(t, feat.WorktreePath, "commit", "-F", msgPath)

	_, err = f.Engine.FinishTask(ctx, feat.ID, task.ID, "done")
	assert.NoError(t, err)

	// Merge the feat branch into main so BranchMergedForArchive is satisfied.
	gitIn(t, f.Layout.RepoRoot, "merge", "--no-ff", "-m", "merge widget", feat.Branch)

	return feat
}

func TestArchiveDoneFeatSatisfiesAllPostConditions(t *testing.T) {
	f := newFixture(t)
	feat := driveToDone(t, f)

	report, err := f.Finalizer.Archive(context.Background(), feat.ID, false)
	assert.NoError(t, err)
	assert.Equal(t, feat.ID, report.FeatID)
	assert.False(t, report.BranchDeleteFailed)

	_, err = os.Stat(f.Layout.FeatDir(feat.ID))
	assert.True(t, os.IsNotExist(err), "active feat dir must be gone")

	_, err = os.Stat(f.Layout.ArchivedFeatDir(feat.ID))
	assert.NoError(t, err, "archived feat dir must exist")

	_, err = os.Stat(feat.WorktreePath)
	assert.True(t, os.IsNotExist(err), "worktree directory must be removed")

	registered, err := f.Git.ListWorktrees(context.Background())
	assert.NoError(t, err)
	assert.False(t, registered[feat.WorktreePath])

	idx, err := ssot.Load[model.IndexDocument](f.Layout.IndexPath())
	assert.NoError(t, err)
	assert.NotContains(t, idx.Feats, feat.ID)

	archivedState, err := ssot.Load[model.StateDocument](filepath.Join(f.Layout.ArchivedFeatDir(feat.ID), "state.json"))
	assert.NoError(t, err)
	assert.Equal(t, model.FeatArchived, archivedState.Status)
	assert.NotNil(t, archivedState.ArchivedAt)
}

func TestArchiveRejectsNonTerminalFeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tasksMD := "---\ntasks:\n  - title: build the thing\n---\n"
	feat, err := f.Engine.CreateFeat(ctx, "Widget Feature", "ship widget", "widget", "main", []byte(tasksMD), false, "", guards.AlwaysReady{})
	assert.NoError(t, err)
	_, err = f.Engine.StartTask(ctx, feat.ID, "")
	assert.NoError(t, err)

	_, err = f.Finalizer.Archive(ctx, feat.ID, false)
	assert.ErrorIs(t, err, harnesserr.ErrInvalidTransition)

	// Nothing was relocated on a blocked precondition.
	_, statErr := os.Stat(f.Layout.FeatDir(feat.ID))
	assert.NoError(t, statErr)
}

func TestArchiveRejectsUnmergedDoneBranch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tasksMD := "---\ntasks:\n  - title: build the thing\n---\n"
	feat, err := f.Engine.CreateFeat(ctx, "Widget Feature", "ship widget", "widget", "main", []byte(tasksMD), false, "", guards.AlwaysReady{})
	assert.NoError(t, err)
	task, err := f.Engine.StartTask(ctx, feat.ID, "")
	assert.NoError(t, err)
	cfg := model.GateConfig{ProjectType: gate.ProjectTypeNonUI, NonUICommands: []string{"exit 0"}}
	_, err = f.Engine.RunTaskGate(ctx, feat.ID, task.ID, cfg)
	assert.NoError(t, err)

	assert.NoError(t, os.WriteFile(filepath.Join(feat.WorktreePath, "widget.go"), []byte("package widget\n"), 0o644))
	gitIn(t, feat.WorktreePath, "add", "widget.go")
	msgPath, err := f.Engine.PrepareTaskCommit(ctx, feat.ID, task.ID, lifecycle.PrepareTaskCommitInput{
		Summary: "build the thing", Plan: "add widget", Check: "exit 0", Learn: "none",
	})
	assert.NoError(t, err)
	gitIn(t, feat.WorktreePath, "commit", "-F", msgPath)
	_, err = f.Engine.FinishTask(ctx, feat.ID, task.ID, "done")
	assert.NoError(t, err)
	// Deliberately skip merging feat.Branch into main.

	_, err = f.Finalizer.Archive(ctx, feat.ID, false)
	assert.ErrorIs(t, err, harnesserr.ErrInvalidTransition)
}

func TestArchiveAbandonedFeatWithIncompleteTasksWarnsButSucceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tasksMD := "---\ntasks:\n  - title: first\n  - title: second\n---\n"
	feat, err := f.Engine.CreateFeat(ctx, "Widget Feature", "ship widget", "widget", "main", []byte(tasksMD), false, "", guards.AlwaysReady{})
	assert.NoError(t, err)

	assert.NoError(t, f.Engine.AbandonFeat(feat.ID))

	report, err := f.Finalizer.Archive(ctx, feat.ID, false)
	assert.NoError(t, err)
	assert.Contains(t, report.Advisories, "tasks")
}
