package guards

import (
	"context"
	"fmt"
	"strings"
)

// --- Pre-feat guards (create-feat) ---

// ReferenceReadiness ensures the external reference-readiness gate passed
// before a feat is created. PopulatePreFeatState sets ReferenceReady to true
// unconditionally outside --strict mode, so this guard is effectively a
// no-op unless the caller opted into strict checking (§9
// "External-collaborator seam": only create-feat may block on reference
// readiness, and only in strict mode).
var ReferenceReadiness = NewGuardFunc("reference_readiness", func(_ context.Context, gctx *GuardContext) Result {
	if gctx.ReferenceReady {
		return Pass("reference_readiness")
	}
	return Fail("reference_readiness", HardBlock,
		"Reference-readiness check failed.",
		"Run check-reference-readiness and resolve any reported gaps, or drop --strict.",
	)
})

// NoSlugCollision ensures the candidate slug does not collide with an
// existing active feat (§8 "Boundary behaviors").
var NoSlugCollision = NewGuardFunc("no_slug_collision", func(_ context.Context, gctx *GuardContext) Result {
	if !gctx.SlugCollides {
		return Pass("no_slug_collision")
	}
	return Fail("no_slug_collision", HardBlock,
		fmt.Sprintf("An active feat already uses slug %q.", gctx.Slug),
		"Choose a different slug, or archive the existing feat first.",
	)
})

// --- Archive guards (§4.7 step 1 "Precondition check") ---

// FeatTerminal ensures the feat is done or abandoned before archiving.
var FeatTerminal = NewGuardFunc("feat_terminal", func(_ context.Context, gctx *GuardContext) Result {
	switch gctx.FeatStatus {
	case "done", "abandoned":
		return Pass("feat_terminal")
	}
	return Fail("feat_terminal", HardBlock,
		fmt.Sprintf("Feat is %q; only done or abandoned feats may be archived.", gctx.FeatStatus),
		"Finish remaining tasks, or mark the feat abandoned.",
	)
})

// WorktreeCleanForArchive ensures the feat's worktree has no pending changes.
var WorktreeCleanForArchive = NewGuardFunc("worktree_clean", func(_ context.Context, gctx *GuardContext) Result {
	if gctx.WorktreeClean {
		return Pass("worktree_clean")
	}
	return Fail("worktree_clean", HardBlock,
		"Worktree has staged, unstaged, or untracked changes.",
		"Commit or stash changes in the feat worktree before archiving.",
	)
})

// BranchMergedForArchive ensures a done feat's branch is merged into base
// before archiving (§8 "archive-feat on a done feat whose branch is not
// merged fails with InvalidTransition").
var BranchMergedForArchive = NewGuardFunc("branch_merged", func(_ context.Context, gctx *GuardContext) Result {
	if gctx.FeatStatus != "done" {
		return Pass("branch_merged") // only required for done feats
	}
	if gctx.BranchMerged {
		return Pass("branch_merged")
	}
	return Fail("branch_merged", HardBlock,
		"Feat is done but its branch is not merged into the base branch.",
		"Merge feat/<feat-id> into the base branch before archiving.",
	)
})

// TaskCompletionAdvisory warns (non-blocking) when some tasks remain
// incomplete on an abandoned feat being archived.
var TaskCompletionAdvisory = NewGuardFunc("task_completion", func(_ context.Context, gctx *GuardContext) Result {
	if gctx.FeatStatus != "abandoned" || gctx.TaskCount == 0 {
		return Pass("task_completion")
	}
	incomplete := gctx.TaskCount - gctx.DoneTasks
	if incomplete == 0 {
		return Pass("task_completion")
	}
	return Fail("task_completion", Warning,
		fmt.Sprintf("%d of %d tasks are not done on this abandoned feat.", incomplete, gctx.TaskCount),
		"",
	)
})

// --- Status guards (show-feat-status) ---

// GateEvidencePresence warns (non-blocking) when a task has moved past
// planned without ever recording a gate run.
var GateEvidencePresence = NewGuardFunc("gate_evidence_presence", func(_ context.Context, gctx *GuardContext) Result {
	if len(gctx.TasksWithoutGateEvidence) == 0 {
		return Pass("gate_evidence_presence")
	}
	return Fail("gate_evidence_presence", Warning,
		fmt.Sprintf("task(s) %s have no gate evidence yet.", strings.Join(gctx.TasksWithoutGateEvidence, ", ")),
		"Run run-task-gate before finishing these tasks.",
	)
})

// --- Guard sets ---

// CreateFeatGuards returns the guards run before creating a new feat.
func CreateFeatGuards() []Guard {
	return []Guard{
		NoSlugCollision,
		ReferenceReadiness,
	}
}

// ArchiveGuards returns the guards run before archiving a feat.
func ArchiveGuards() []Guard {
	return []Guard{
		FeatTerminal,
		WorktreeCleanForArchive,
		BranchMergedForArchive,
		TaskCompletionAdvisory,
	}
}

// StatusGuards returns the advisory guards run for show-feat-status.
func StatusGuards() []Guard {
	return []Guard{
		GateEvidencePresence,
	}
}
