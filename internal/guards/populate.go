package guards

import (
	"context"

	"github.com/bagakit/ft-harness/internal/layout"
	"github.com/bagakit/ft-harness/internal/model"
	"github.com/bagakit/ft-harness/internal/ssot"
	"github.com/bagakit/ft-harness/internal/vcsadapter"
)

// ReferenceReadinessChecker is the external-collaborator seam for the
// reference-readiness gate (§1 "Out of scope"; §9 "External-collaborator
// seam"). The real implementation lives outside this spec's scope; a
// default always-pass stub is wired in so --strict has something concrete
// to call.
type ReferenceReadinessChecker interface {
	Check(ctx context.Context, repoRoot, manifestPath string) (bool, error)
}

// AlwaysReady is the default ReferenceReadinessChecker: it always passes.
// Swap in a real manifest-driven checker by implementing the interface.
type AlwaysReady struct{}

func (AlwaysReady) Check(_ context.Context, _, _ string) (bool, error) { return true, nil }

// PopulatePreFeatState fills the GuardContext for create-feat: slug
// collision against the index, and reference readiness (only consulted in
// strict mode, per §9).
func PopulatePreFeatState(ctx context.Context, l *layout.Layout, slug string, strict bool, manifestPath string, checker ReferenceReadinessChecker, gctx *GuardContext) error {
	gctx.Slug = slug

	idx, err := ssot.Load[model.IndexDocument](l.IndexPath())
	if err != nil {
		idx = model.NewIndexDocument()
	}
	for featID, entry := range idx.Feats {
		if entry.Status != model.FeatArchived && slugOf(featID) == slug {
			gctx.SlugCollides = true
			break
		}
	}

	if !strict {
		gctx.ReferenceReady = true
		return nil
	}
	ok, err := checker.Check(ctx, l.RepoRoot, manifestPath)
	if err != nil {
		return err
	}
	gctx.ReferenceReady = ok
	return nil
}

// PopulateStatusState fills the GuardContext for show-feat-status: which
// tasks have progressed past planned without ever recording a gate run.
func PopulateStatusState(tasks []*model.Task, gctx *GuardContext) {
	for _, t := range tasks {
		if t.Status == model.TaskPlanned {
			continue
		}
		if len(t.GateEvidence) == 0 {
			gctx.TasksWithoutGateEvidence = append(gctx.TasksWithoutGateEvidence, t.ID)
		}
	}
}

// slugOf extracts the slug portion of a feat id F-<slug>-<counter>.
func slugOf(featID string) string {
	s := featID
	if len(s) > 2 && s[:2] == "F-" {
		s = s[2:]
	}
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '-' {
			return s[:i]
		}
	}
	return s
}

// PopulateArchiveState fills the GuardContext for archive-feat: feat status,
// worktree cleanliness, merge status, and task counts (§4.7 step 1).
func PopulateArchiveState(ctx context.Context, l *layout.Layout, git *vcsadapter.Git, feat *model.Feat, gctx *GuardContext) error {
	gctx.FeatID = feat.ID
	gctx.FeatStatus = feat.Status

	clean, err := git.WorktreeIsClean(ctx, feat.WorktreePath)
	if err != nil {
		return err
	}
	gctx.WorktreeClean = clean

	if feat.Status == model.FeatDone {
		merged, err := git.IsMerged(ctx, feat.Branch, feat.BaseBranch)
		if err != nil {
			return err
		}
		gctx.BranchMerged = merged
	}

	tasksDoc, err := ssot.Load[model.TasksDocument](l.TasksPath(feat.ID))
	if err == nil {
		for _, t := range tasksDoc.Tasks {
			gctx.TaskCount++
			switch t.Status {
			case model.TaskDone:
				gctx.DoneTasks++
			case model.TaskBlocked:
				gctx.BlockedTasks++
			case model.TaskInProgress:
				gctx.InProgressTasks++
			}
		}
	}

	return nil
}
