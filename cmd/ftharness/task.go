package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bagakit/ft-harness/internal/lifecycle"
)

// newStartTaskCmd transitions a task to in_progress. If --task is omitted,
// the engine selects the lowest-numbered planned task (§8 "S4 Concurrent mint").
func newStartTaskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start-task",
		Short: "Start a task: planned/blocked -> in_progress",
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
			task, err := d.Engine.StartTask(ctx(), flagFeat, flagTask)
			if err != nil {
				return err
			}
			logger.Info("started task", "feat_id", flagFeat, "task_id", task.ID)
			if flagJSON {
				printJSON(task)
				return nil
			}
			kv("task_id", task.ID)
			kvStatus("status", task.Status)
			return nil
		},
	}
}

// newRunTaskGateCmd executes the quality gate for an in_progress task.
func newRunTaskGateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-task-gate",
		Short: "Run the quality gate for an in_progress task and record evidence",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}
			if flagFeat == "" || flagTask == "" {
				return fmt.Errorf("--feat and --task are required: %w", errUsage)
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			result, gateErr := d.Engine.RunTaskGate(ctx(), flagFeat, flagTask, d.Config.Gate)
			if result == nil {
				return gateErr
			}

			logger.Info("ran task gate", "feat_id", flagFeat, "task_id", flagTask, "pass", result.Pass, "project_type", result.ProjectType)
			if flagJSON {
				printJSON(result)
			} else {
				kv("project_type", result.ProjectType)
				if result.Pass {
					kvStatus("gate_result", "pass")
				} else {
					kvStatus("gate_result", "fail")
				}
				for _, ev := range result.Evidence {
					kv("evidence", fmt.Sprintf("%s exit=%d %s", ev.Command, ev.ExitCode, ev.StdoutPath))
				}
			}
			return gateErr
		},
	}
}

// newPrepareTaskCommitCmd generates the commit message file for a gated
// task (§4.6). --execute is accepted for parity with §6's flag list but the
// engine never invokes the VCS commit itself — operators commit using the
// emitted message file, per the spec's "operator commits" S1 scenario.
func newPrepareTaskCommitCmd() *cobra.Command {
	var summary, plan, check, learn string
	cmd := &cobra.Command{
		Use:   "prepare-task-commit",
		Short: "Emit the commit message file for a gate-passed task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}
			if flagFeat == "" || flagTask == "" {
				return fmt.Errorf("--feat and --task are required: %w", errUsage)
			}
			if summary == "" {
				return fmt.Errorf("--summary is required: %w", errUsage)
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			path, err := d.Engine.PrepareTaskCommit(ctx(), flagFeat, flagTask, lifecycle.PrepareTaskCommitInput{
				Summary: summary, Plan: plan, Check: check, Learn: learn,
			})
			if err != nil {
				return err
			}
			logger.Info("prepared task commit", "feat_id", flagFeat, "task_id", flagTask, "message_file", path)
			kv("message_file", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&summary, "summary", "", "one-line summary (required)")
	cmd.Flags().StringVar(&plan, "plan", "what was planned for this task", "Plan section body")
	cmd.Flags().StringVar(&check, "check", "gate evidence recorded by run-task-gate", "Check section body")
	cmd.Flags().StringVar(&learn, "learn", "no notable deviations", "Learn section body")
	cmd.Flags().BoolVar(&flagExecute, "execute", false, "accepted for CLI surface parity; operators still commit using message_file themselves")
	return cmd
}

// newFinishTaskCmd completes or blocks an in_progress task (§4.5).
func newFinishTaskCmd() *cobra.Command {
	var result string
	cmd := &cobra.Command{
		Use:   "finish-task",
		Short: "Finish a task: in_progress -> done (verifying HEAD trailers) or blocked",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}
			if flagFeat == "" || flagTask == "" {
				return fmt.Errorf("--feat and --task are required: %w", errUsage)
			}
			if result != "done" && result != "blocked" {
				return fmt.Errorf("--result must be done or blocked: %w", errUsage)
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			task, err := d.Engine.FinishTask(ctx(), flagFeat, flagTask, result)
			if err != nil {
				return err
			}
			logger.Info("finished task", "feat_id", flagFeat, "task_id", flagTask, "result", result)
			if flagJSON {
				printJSON(task)
				return nil
			}
			kv("task_id", task.ID)
			kvStatus("status", task.Status)
			if task.CommitSHA != "" {
				kv("commit_sha", task.CommitSHA)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&result, "result", "", "done or blocked (required)")
	return cmd
}
