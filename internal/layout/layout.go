// Package layout centralizes the filesystem layout under
// <repo>/.bagakit/ft-harness/ and <repo>/.worktrees/ (§6 "Filesystem layout")
// so every component agrees on where things live.
package layout

import "path/filepath"

// Layout resolves paths relative to a repository root.
type Layout struct {
	RepoRoot string
}

// New returns a Layout rooted at repoRoot (the --root flag value).
func New(repoRoot string) *Layout {
	return &Layout{RepoRoot: repoRoot}
}

// HarnessDir is <repo>/.bagakit/ft-harness.
func (l *Layout) HarnessDir() string {
	return filepath.Join(l.RepoRoot, ".bagakit", "ft-harness")
}

// ConfigPath is <repo>/.bagakit/ft-harness/config.json.
func (l *Layout) ConfigPath() string {
	return filepath.Join(l.HarnessDir(), "config.json")
}

// IndexPath is <repo>/.bagakit/ft-harness/index/feats.json.
func (l *Layout) IndexPath() string {
	return filepath.Join(l.HarnessDir(), "index", "feats.json")
}

// FeatDir is <repo>/.bagakit/ft-harness/feats/<feat-id>/.
func (l *Layout) FeatDir(featID string) string {
	return filepath.Join(l.HarnessDir(), "feats", featID)
}

// ArchivedFeatDir is <repo>/.bagakit/ft-harness/feats-archived/<feat-id>/.
func (l *Layout) ArchivedFeatDir(featID string) string {
	return filepath.Join(l.HarnessDir(), "feats-archived", featID)
}

// StatePath is feats/<feat-id>/state.json.
func (l *Layout) StatePath(featID string) string {
	return filepath.Join(l.FeatDir(featID), "state.json")
}

// TasksPath is feats/<feat-id>/tasks.json.
func (l *Layout) TasksPath(featID string) string {
	return filepath.Join(l.FeatDir(featID), "tasks.json")
}

// TasksMDPath is feats/<feat-id>/tasks.md (human-authored task declarations).
func (l *Layout) TasksMDPath(featID string) string {
	return filepath.Join(l.FeatDir(featID), "tasks.md")
}

// ProposalPath is feats/<feat-id>/proposal.md.
func (l *Layout) ProposalPath(featID string) string {
	return filepath.Join(l.FeatDir(featID), "proposal.md")
}

// SpecDeltasDir is feats/<feat-id>/spec-deltas/.
func (l *Layout) SpecDeltasDir(featID string) string {
	return filepath.Join(l.FeatDir(featID), "spec-deltas")
}

// CommitMessagePath is feats/<feat-id>/commits/<task-id>.msg (ephemeral).
func (l *Layout) CommitMessagePath(featID, taskID string) string {
	return filepath.Join(l.FeatDir(featID), "commits", taskID+".msg")
}

// GateEvidenceDir is feats/<feat-id>/gate/<task-id>/.
func (l *Layout) GateEvidenceDir(featID, taskID string) string {
	return filepath.Join(l.FeatDir(featID), "gate", taskID)
}

// WorktreesRoot is <repo>/.worktrees, unless overridden by config.
func (l *Layout) WorktreesRoot(configuredRoot string) string {
	if configuredRoot == "" {
		configuredRoot = ".worktrees"
	}
	if filepath.IsAbs(configuredRoot) {
		return configuredRoot
	}
	return filepath.Join(l.RepoRoot, configuredRoot)
}

// WorktreePath is <worktrees-root>/<feat-id>.
func (l *Layout) WorktreePath(configuredRoot, featID string) string {
	return filepath.Join(l.WorktreesRoot(configuredRoot), featID)
}
