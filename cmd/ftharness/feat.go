package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bagakit/ft-harness/internal/archive"
	"github.com/bagakit/ft-harness/internal/guards"
	"github.com/bagakit/ft-harness/internal/harnesserr"
	"github.com/bagakit/ft-harness/internal/model"
	"github.com/bagakit/ft-harness/internal/ssot"
)

// newCreateFeatCmd runs the pre-feat guards, mints a feat id, and creates
// its branch, worktree, and SSOT documents.
func newCreateFeatCmd() *cobra.Command {
	var title, goal, slug, baseBranch, tasksMDPath string
	cmd := &cobra.Command{
		Use:   "create-feat",
		Short: "Create a new feat: branch, worktree, state.json, tasks.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}
			if title == "" || slug == "" {
				return fmt.Errorf("--title and --slug are required: %w", errUsage)
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			base := baseBranch
			if base == "" {
				base = d.Config.BaseBranch
			}

			var tasksMD []byte
			if tasksMDPath != "" {
				tasksMD, err = os.ReadFile(tasksMDPath)
				if err != nil {
					return fmt.Errorf("reading %s: %w", tasksMDPath, errUsage)
				}
			}

			manifestPath := resolveManifestPath(flagManifest, d.Env)
			feat, err := d.Engine.CreateFeat(ctx(), title, goal, slug, base, tasksMD, strictMode(), manifestPath, guards.AlwaysReady{})
			if err != nil {
				return err
			}

			logger.Info("created feat", "feat_id", feat.ID, "slug", slug)
			if flagJSON {
				printJSON(feat)
				return nil
			}
			kv("feat_id", feat.ID)
			kv("worktree", feat.WorktreePath)
			kv("branch", feat.Branch)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "feat title (required)")
	cmd.Flags().StringVar(&goal, "goal", "", "feat goal")
	cmd.Flags().StringVar(&slug, "slug", "", "feat slug, used to mint the feat id (required)")
	cmd.Flags().StringVar(&baseBranch, "base-branch", "", "integration base branch (default: config base_branch)")
	cmd.Flags().StringVar(&tasksMDPath, "tasks-md", "", "path to a tasks.md file declaring the feat's tasks")
	return cmd
}

// newShowFeatStatusCmd prints one feat's state.json, a task summary,
// gate-evidence advisories, and a prioritized next-steps list.
func newShowFeatStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-feat-status",
		Short: "Show a feat's current state, task summary, and next steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}
			if flagFeat == "" {
				return fmt.Errorf("--feat is required: %w", errUsage)
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			state, err := ssot.Load[model.StateDocument](d.Layout.StatePath(flagFeat))
			if err != nil {
				return err
			}
			ssot.NormalizeFeat(&state.Feat)
			tasksDoc, err := ssot.Load[model.TasksDocument](d.Layout.TasksPath(flagFeat))
			if err != nil {
				return err
			}
			ssot.NormalizeTasksDocument(tasksDoc)

			gctx := &guards.GuardContext{FeatID: state.ID}
			guards.PopulateStatusState(tasksDoc.Tasks, gctx)
			outcome := guards.NewRunner().Run(ctx(), gctx, guards.StatusGuards())
			nextSteps := buildNextSteps(&state.Feat, tasksDoc.Tasks)

			if flagJSON {
				printJSON(map[string]any{
					"feat":       state.Feat,
					"tasks":      tasksDoc.Tasks,
					"advisories": outcome.Warnings(),
					"next_steps": nextSteps,
				})
				return nil
			}
			kv("feat_id", state.ID)
			kv("title", state.Title)
			kvStatus("status", state.Status)
			kv("branch", state.Branch)
			kv("worktree", state.WorktreePath)
			for _, t := range tasksDoc.Tasks {
				kvStatus("task_"+t.ID, fmt.Sprintf("%s (gate=%s)", t.Status, t.GateResult))
			}
			if advisory := outcome.FormatAdvisoryMessage(); advisory != "" {
				fmt.Fprint(os.Stderr, advisory)
			}
			for i, step := range nextSteps {
				kv(fmt.Sprintf("next_step_%d", i+1), step)
			}
			return nil
		},
	}
}

// buildNextSteps returns prioritized actions the operator should take next,
// stopping at the first unmet stage (draft -> start -> gate -> commit ->
// unblock -> archive).
func buildNextSteps(feat *model.Feat, tasks []*model.Task) []string {
	if feat.Status == model.FeatArchived {
		return nil
	}
	if feat.Status == model.FeatAbandoned {
		return []string{fmt.Sprintf("Archive the abandoned feat: archive-feat --feat %s", feat.ID)}
	}
	if len(tasks) == 0 {
		return []string{"Add tasks to tasks.json before starting work"}
	}

	var blocked, inProgress []*model.Task
	allDone := true
	for _, t := range tasks {
		switch t.Status {
		case model.TaskBlocked:
			blocked = append(blocked, t)
			allDone = false
		case model.TaskInProgress:
			inProgress = append(inProgress, t)
			allDone = false
		case model.TaskDone:
		default:
			allDone = false
		}
	}

	for _, t := range inProgress {
		if t.GateResult != model.GatePass {
			return []string{fmt.Sprintf("Run the quality gate: run-task-gate --feat %s --task %s", feat.ID, t.ID)}
		}
	}
	if len(inProgress) > 0 {
		t := inProgress[0]
		return []string{fmt.Sprintf("Prepare the commit: prepare-task-commit --feat %s --task %s", feat.ID, t.ID)}
	}
	if len(blocked) > 0 {
		t := blocked[0]
		return []string{fmt.Sprintf("Restart the blocked task: start-task --feat %s --task %s", feat.ID, t.ID)}
	}
	if allDone {
		return []string{fmt.Sprintf("All tasks complete. Archive the feat: archive-feat --feat %s", feat.ID)}
	}
	return []string{fmt.Sprintf("Start the next task: start-task --feat %s", feat.ID)}
}

// newListFeatsCmd prints every feat-id/status pair in the index, in order.
func newListFeatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-feats",
		Short: "List every feat in the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			idx, err := ssot.Load[model.IndexDocument](d.Layout.IndexPath())
			if err != nil {
				return err
			}
			if flagJSON {
				printJSON(idx)
				return nil
			}
			for _, id := range idx.Order {
				entry := idx.Feats[id]
				kvStatus(id, fmt.Sprintf("%s (%s)", entry.Status, entry.Title))
			}
			return nil
		},
	}
}

// newGetFeatCmd prints one feat's index descriptor.
func newGetFeatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-feat",
		Short: "Print one feat's index descriptor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}
			if flagFeat == "" {
				return fmt.Errorf("--feat is required: %w", errUsage)
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			idx, err := ssot.Load[model.IndexDocument](d.Layout.IndexPath())
			if err != nil {
				return err
			}
			entry, ok := idx.Feats[flagFeat]
			if !ok {
				return fmt.Errorf("%s not found in index: %w", flagFeat, harnesserr.ErrNotFound)
			}
			if flagJSON {
				printJSON(entry)
				return nil
			}
			kv("feat_id", flagFeat)
			kv("title", entry.Title)
			kvStatus("status", entry.Status)
			kv("branch", entry.Branch)
			kv("worktree", entry.WorktreePath)
			return nil
		},
	}
}

// newFilterFeatsCmd lists feats whose status matches --status (comma
// separated for multiple).
func newFilterFeatsCmd() *cobra.Command {
	var statusCSV string
	cmd := &cobra.Command{
		Use:   "filter-feats",
		Short: "List feats matching one or more statuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			idx, err := ssot.Load[model.IndexDocument](d.Layout.IndexPath())
			if err != nil {
				return err
			}
			wanted := map[string]bool{}
			for _, s := range strings.Split(statusCSV, ",") {
				if s = strings.TrimSpace(s); s != "" {
					wanted[s] = true
				}
			}
			matched := map[string]*model.IndexEntry{}
			var order []string
			for _, id := range idx.Order {
				entry := idx.Feats[id]
				if len(wanted) == 0 || wanted[entry.Status] {
					matched[id] = entry
					order = append(order, id)
				}
			}
			if flagJSON {
				printJSON(map[string]any{"order": order, "feats": matched})
				return nil
			}
			for _, id := range order {
				entry := matched[id]
				kvStatus(id, fmt.Sprintf("%s (%s)", entry.Status, entry.Title))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&statusCSV, "status", "", "comma-separated statuses to match (default: all)")
	return cmd
}

// newArchiveFeatCmd runs the archive finalizer (C7, §4.7).
func newArchiveFeatCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "archive-feat",
		Short: "Archive a done or abandoned feat: relocate state, remove the worktree, delete the branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}
			if flagFeat == "" {
				return fmt.Errorf("--feat is required: %w", errUsage)
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			finalizer := archive.New(d.Layout, d.Git, d.Worktree, nil)
			report, err := finalizer.Archive(ctx(), flagFeat, force)
			if err != nil {
				return err
			}

			logger.Info("archived feat", "feat_id", flagFeat, "branch_delete_failed", report.BranchDeleteFailed)
			if flagJSON {
				printJSON(report)
				return nil
			}
			kv("feat_id", report.FeatID)
			if report.BranchDeleteFailed {
				kv("branch_delete_failed", report.BranchDeleteErr)
			}
			if report.Advisories != "" {
				fmt.Fprint(os.Stderr, report.Advisories)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "override soft-block guards and force worktree/branch removal")
	return cmd
}
