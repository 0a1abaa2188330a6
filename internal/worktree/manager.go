// Package worktree owns the mapping feat ↔ directory under .worktrees/
// (C3). It exclusively creates and removes directories there; the VCS
// registry is reconciled against that filesystem truth by the doctor.
package worktree

import (
	"context"
	"fmt"
	"os"

	"github.com/bagakit/ft-harness/internal/harnesserr"
	"github.com/bagakit/ft-harness/internal/layout"
	"github.com/bagakit/ft-harness/internal/vcsadapter"
)

// Manager allocates and removes per-feat worktree directories.
type Manager struct {
	Layout        *layout.Layout
	Git           *vcsadapter.Git
	WorktreesRoot string // configured root, relative or absolute
}

// New returns a Manager for the given layout and VCS adapter.
func New(l *layout.Layout, g *vcsadapter.Git, worktreesRoot string) *Manager {
	return &Manager{Layout: l, Git: g, WorktreesRoot: worktreesRoot}
}

// Path returns the worktree directory a feat would use.
func (m *Manager) Path(featID string) string {
	return m.Layout.WorktreePath(m.WorktreesRoot, featID)
}

// Create allocates <repo>/.worktrees/<feat-id>/ and registers it with the
// VCS adapter as a checkout of branch.
func (m *Manager) Create(ctx context.Context, featID, branch string) (string, error) {
	path := m.Path(featID)
	if err := m.Git.AddWorktree(ctx, path, branch); err != nil {
		return "", err
	}
	return path, nil
}

// Remove deregisters and deletes the feat's worktree directory. Fails if the
// working copy is dirty unless force is true.
func (m *Manager) Remove(ctx context.Context, featID string, force bool) error {
	path := m.Path(featID)
	if err := m.Git.RemoveWorktree(ctx, path, force); err != nil {
		return err
	}
	// git worktree remove already deletes the directory; this is a
	// best-effort guard against a stale empty directory left behind.
	if _, err := os.Stat(path); err == nil {
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return fmt.Errorf("removing leftover worktree dir %s: %w", path, harnesserr.ErrIOError)
		}
	}
	return nil
}

// Reconcile cross-checks, for one feat, that (a) the directory exists,
// (b) the VCS registry contains it, and (c) HEAD of that worktree equals
// feat/<feat-id> (§4.3). It reports drift without mutating anything.
type Drift struct {
	DirMissing      bool
	NotRegistered   bool
	HeadMismatch    bool
	HeadBranch      string
	ExpectedBranch  string
}

// Any reports whether any drift was found.
func (d Drift) Any() bool {
	return d.DirMissing || d.NotRegistered || d.HeadMismatch
}

// Reconcile checks one feat's worktree against the VCS registry and HEAD.
func (m *Manager) Reconcile(ctx context.Context, featID string, registered map[string]bool) (Drift, error) {
	path := m.Path(featID)
	expected := "feat/" + featID
	var d Drift
	d.ExpectedBranch = expected

	if _, err := os.Stat(path); err != nil {
		d.DirMissing = true
		return d, nil
	}

	if !registered[path] {
		d.NotRegistered = true
	}

	head, err := m.Git.HeadBranch(ctx, path)
	if err != nil {
		return d, err
	}
	d.HeadBranch = head
	if head != expected {
		d.HeadMismatch = true
	}
	return d, nil
}
