// Package vcsadapter centralizes all knowledge of the underlying
// version-control tool (git) behind the capability operations of §4.2.
// No other package shells out to git directly — this mirrors the
// "most knowledge about specific VCS lives in one capability list" design
// reference-surveyed from reposurgeon's vcs.go, retargeted from
// fast-import/export translation to the worktree/branch operations this
// harness needs.
package vcsadapter

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bagakit/ft-harness/internal/harnesserr"
)

// Git shells out to the git binary rooted at RepoRoot. Every operation
// returns the subprocess's exit code and stderr to the caller wrapped in
// harnesserr.ErrVCSFailure — the adapter never swallows VCS errors (§4.2).
type Git struct {
	RepoRoot string
	// Bin overrides the git binary name/path; defaults to "git".
	Bin string
}

// New returns a Git adapter rooted at repoRoot.
func New(repoRoot string) *Git {
	return &Git{RepoRoot: repoRoot, Bin: "git"}
}

func (g *Git) bin() string {
	if g.Bin == "" {
		return "git"
	}
	return g.Bin
}

// run executes git with args in RepoRoot and returns trimmed stdout.
func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, g.bin(), args...)
	cmd.Dir = g.RepoRoot
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %v: %s", strings.Join(args, " "), harnesserr.ErrVCSFailure, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// runIn executes git with args in dir instead of RepoRoot (used for
// operations inside a feat's own worktree checkout).
func (g *Git) runIn(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, g.bin(), args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s (in %s): %w: %v: %s", strings.Join(args, " "), dir, harnesserr.ErrVCSFailure, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// CurrentBaseBranch returns the branch considered integration base: the
// symbolic ref target of HEAD in RepoRoot (the main checkout).
func (g *Git) CurrentBaseBranch(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "symbolic-ref", "--short", "HEAD")
	if err != nil {
		return "", err
	}
	return out, nil
}

// CreateFeatBranch creates feat/<feat-id> from the base branch. Fails if the
// branch already exists.
func (g *Git) CreateFeatBranch(ctx context.Context, featID, base string) (string, error) {
	branch := "feat/" + featID
	if _, err := g.run(ctx, "branch", branch, base); err != nil {
		return "", err
	}
	return branch, nil
}

// AddWorktree registers a working-copy checkout of branch at path. Fails if
// path exists and is non-empty (git itself enforces this).
func (g *Git) AddWorktree(ctx context.Context, path, branch string) error {
	_, err := g.run(ctx, "worktree", "add", path, branch)
	return err
}

// RemoveWorktree deregisters and removes the directory at path. Fails if the
// working copy has uncommitted changes unless force is true.
func (g *Git) RemoveWorktree(ctx context.Context, path string, force bool) error {
	args := []string{"worktree", "remove", path}
	if force {
		args = append(args, "--force")
	}
	_, err := g.run(ctx, args...)
	return err
}

// ListWorktrees returns the set of registered worktree paths (porcelain
// listing for reconciliation, §4.3).
func (g *Git) ListWorktrees(ctx context.Context) (map[string]bool, error) {
	out, err := g.run(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	paths := map[string]bool{}
	for _, line := range strings.Split(out, "\n") {
		if p, ok := strings.CutPrefix(line, "worktree "); ok {
			paths[strings.TrimSpace(p)] = true
		}
	}
	return paths, nil
}

// IsMerged reports whether branch has been merged into base.
func (g *Git) IsMerged(ctx context.Context, branch, base string) (bool, error) {
	out, err := g.run(ctx, "branch", "--merged", base, "--format=%(refname:short)")
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == branch {
			return true, nil
		}
	}
	return false, nil
}

// DeleteBranch deletes branch. Fails if unmerged unless force is true.
func (g *Git) DeleteBranch(ctx context.Context, branch string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	_, err := g.run(ctx, "branch", flag, branch)
	return err
}

// WorktreeIsClean reports whether the working copy at path has no staged,
// unstaged, or untracked changes.
func (g *Git) WorktreeIsClean(ctx context.Context, path string) (bool, error) {
	out, err := g.runIn(ctx, path, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "", nil
}

// HeadBranch returns the branch checked out at path.
func (g *Git) HeadBranch(ctx context.Context, path string) (string, error) {
	return g.runIn(ctx, path, "symbolic-ref", "--short", "HEAD")
}

// HeadSHA returns the commit SHA at HEAD of path.
func (g *Git) HeadSHA(ctx context.Context, path string) (string, error) {
	return g.runIn(ctx, path, "rev-parse", "HEAD")
}

// HeadCommitMessage returns the full HEAD commit message at path, used by
// finish-task to re-parse and verify trailers (§4.6).
func (g *Git) HeadCommitMessage(ctx context.Context, path string) (string, error) {
	out, err := g.runIn(ctx, path, "log", "-1", "--format=%B")
	if err != nil {
		return "", err
	}
	return out, nil
}

// HasDiff reports whether path has any staged or unstaged changes relative
// to HEAD (used by prepare-task-commit's precondition, §4.5).
func (g *Git) HasDiff(ctx context.Context, path string) (bool, error) {
	clean, err := g.WorktreeIsClean(ctx, path)
	if err != nil {
		return false, err
	}
	return !clean, nil
}
