package vcsadapter

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bagakit/ft-harness/internal/harnesserr"
)

// initRepo creates a git repository in a temp dir with one commit on
// "main", and returns a Git adapter rooted there.
func initRepo(t *testing.T) (*Git, string) {
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
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))
	run("add", "README.md")
	run("commit", "-m", "initial commit")
	return New(dir), dir
}

func TestCurrentBaseBranch(t *testing.T) {
	g, _ := initRepo(t)
	branch, err := g.CurrentBaseBranch(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestCreateFeatBranchAndWorktreeLifecycle(t *testing.T) {
	g, dir := initRepo(t)
	ctx := context.Background()

	branch, err := g.CreateFeatBranch(ctx, "F-demo", "main")
	assert.NoError(t, err)
	assert.Equal(t, "feat/F-demo", branch)

	wtPath := filepath.Join(t.TempDir(), "F-demo")
	assert.NoError(t, g.AddWorktree(ctx, wtPath, branch))

	registered, err := g.ListWorktrees(ctx)
	assert.NoError(t, err)
	assert.True(t, registered[wtPath])

	head, err := g.HeadBranch(ctx, wtPath)
	assert.NoError(t, err)
	assert.Equal(t, branch, head)

	clean, err := g.WorktreeIsClean(ctx, wtPath)
	assert.NoError(t, err)
	assert.True(t, clean)

	merged, err := g.IsMerged(ctx, branch, "main")
	assert.NoError(t, err)
	assert.True(t, merged, "an untouched feat branch is trivially merged into its base")

	assert.NoError(t, g.RemoveWorktree(ctx, wtPath, false))
	assert.NoError(t, g.DeleteBranch(ctx, branch, false))

	_ = dir
}

func TestCreateFeatBranchFailsWhenBranchExists(t *testing.T) {
	g, _ := initRepo(t)
	ctx := context.Background()

	_, err := g.CreateFeatBranch(ctx, "F-demo", "main")
	assert.NoError(t, err)

	_, err = g.CreateFeatBranch(ctx, "F-demo", "main")
	assert.ErrorIs(t, err, harnesserr.ErrVCSFailure)
}

func TestWorktreeIsCleanDetectsUntrackedFiles(t *testing.T) {
	g, dir := initRepo(t)
	ctx := context.Background()

	assert.NoError(t, os.WriteFile(filepath.Join(dir, "scratch.txt"), []byte("x"), 0o644))

	clean, err := g.WorktreeIsClean(ctx, dir)
	assert.NoError(t, err)
	assert.False(t, clean)
}

func TestHasDiffMirrorsWorktreeIsClean(t *testing.T) {
	g, dir := initRepo(t)
	ctx := context.Background()

	hasDiff, err := g.HasDiff(ctx, dir)
	assert.NoError(t, err)
	assert.False(t, hasDiff)

	assert.NoError(t, os.WriteFile(filepath.Join(dir, "scratch.txt"), []byte("x"), 0o644))
	hasDiff, err = g.HasDiff(ctx, dir)
	assert.NoError(t, err)
	assert.True(t, hasDiff)
}
