package worktree

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bagakit/ft-harness/internal/layout"
	"github.com/bagakit/ft-harness/internal/vcsadapter"
)

func newTestManager(t *testing.T) (*Manager, *vcsadapter.Git, string) {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
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
	}
	run("init", "-b", "main")
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))
	run("add", "README.md")
	run("commit", "-m", "initial commit")

	git := vcsadapter.New(dir)
	l := layout.New(dir)
	return New(l, git, ".worktrees"), git, dir
}

func TestCreateAndRemoveWorktree(t *testing.T) {
	mgr, git, _ := newTestManager(t)
	ctx := context.Background()

	branch, err := git.CreateFeatBranch(ctx, "F-demo", "main")
	assert.NoError(t, err)

	path, err := mgr.Create(ctx, "F-demo", branch)
	assert.NoError(t, err)
	assert.Equal(t, mgr.Path("F-demo"), path)

	_, err = os.Stat(path)
	assert.NoError(t, err)

	assert.NoError(t, mgr.Remove(ctx, "F-demo", false))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestReconcileReportsMissingDirectory(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	drift, err := mgr.Reconcile(context.Background(), "F-ghost", map[string]bool{})
	assert.NoError(t, err)
	assert.True(t, drift.DirMissing)
	assert.True(t, drift.Any())
}

func TestReconcileCleanWorktreeHasNoDrift(t *testing.T) {
	mgr, git, _ := newTestManager(t)
	ctx := context.Background()

	branch, err := git.CreateFeatBranch(ctx, "F-demo", "main")
	assert.NoError(t, err)
	path, err := mgr.Create(ctx, "F-demo", branch)
	assert.NoError(t, err)

	registered, err := git.ListWorktrees(ctx)
	assert.NoError(t, err)

	drift, err := mgr.Reconcile(ctx, "F-demo", registered)
	assert.NoError(t, err)
	assert.False(t, drift.Any())
	assert.Equal(t, path, mgr.Path("F-demo"))
}

func TestReconcileDetectsUnregisteredWorktree(t *testing.T) {
	mgr, git, _ := newTestManager(t)
	ctx := context.Background()

	branch, err := git.CreateFeatBranch(ctx, "F-demo", "main")
	assert.NoError(t, err)
	_, err = mgr.Create(ctx, "F-demo", branch)
	assert.NoError(t, err)

	drift, err := mgr.Reconcile(ctx, "F-demo", map[string]bool{})
	assert.NoError(t, err)
	assert.True(t, drift.NotRegistered)
}
