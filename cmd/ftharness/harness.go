package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bagakit/ft-harness/internal/config"
	"github.com/bagakit/ft-harness/internal/doctor"
	"github.com/bagakit/ft-harness/internal/gate"
	"github.com/bagakit/ft-harness/internal/harnesserr"
	"github.com/bagakit/ft-harness/internal/layout"
	"github.com/bagakit/ft-harness/internal/model"
	"github.com/bagakit/ft-harness/internal/ssot"
	"github.com/bagakit/ft-harness/internal/vcsadapter"
)

// newInitializeHarnessCmd seeds .bagakit/ft-harness/ in a repo that has
// never run the harness: a default config.json and an empty index.
func newInitializeHarnessCmd() *cobra.Command {
	var baseBranch string
	cmd := &cobra.Command{
		Use:   "initialize-harness",
		Short: "Create the harness's on-disk layout under the repo root",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}
			l := layout.New(flagRoot)
			cfg := model.DefaultConfig()
			if baseBranch != "" {
				cfg.BaseBranch = baseBranch
			} else if b, err := vcsadapter.New(flagRoot).CurrentBaseBranch(ctx()); err == nil && b != "" {
				cfg.BaseBranch = b
			}
			rules, err := gate.BuiltinProjectTypeRules()
			if err != nil {
				return err
			}
			cfg.Gate.ProjectTypeRules = rules
			if err := config.Save(l, cfg); err != nil {
				return err
			}
			if err := ssot.WriteNew(l.IndexPath(), model.NewIndexDocument()); err != nil {
				return err
			}
			logger.Info("initialized harness", "root", flagRoot, "base_branch", cfg.BaseBranch)
			kv("config", l.ConfigPath())
			kv("index", l.IndexPath())
			kv("base_branch", cfg.BaseBranch)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseBranch, "base-branch", "", "integration base branch (default: current branch of --root)")
	return cmd
}

// newValidateHarnessCmd checks that config.json and the index parse and
// satisfy schema constraints, reading only those two files and never
// inspecting worktrees, branches or the VCS (cheaper, narrower check than
// diagnose-harness's full cross-reference audit).
func newValidateHarnessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-harness",
		Short: "Validate config.json and index/feats.json parse and are well-formed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}
			l := layout.New(flagRoot)
			if _, err := config.Load(l); err != nil {
				return err
			}
			idx, err := ssot.Load[model.IndexDocument](l.IndexPath())
			if err != nil {
				return err
			}
			kv("config", "ok")
			kv("index", "ok")
			kv("feats", fmt.Sprintf("%d", len(idx.Order)))
			return nil
		},
	}
}

// newDiagnoseHarnessCmd runs the full SSOT/filesystem/VCS cross-reference
// audit (C8, §4.8) and exits non-zero if any critical issue is found.
func newDiagnoseHarnessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose-harness",
		Short: "Cross-check SSOT state against the filesystem and VCS, reporting drift",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireRoot(); err != nil {
				return err
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			doc := doctor.New(d.Layout, d.Git, *d.Config)
			report, err := doc.Run(ctx())
			if err != nil {
				return err
			}

			if flagJSON {
				printJSON(report)
			} else {
				kv("feats_checked", fmt.Sprintf("%d", report.FeatsChecked))
				kv("critical_issues", fmt.Sprintf("%d", report.CriticalIssues))
				kv("warnings", fmt.Sprintf("%d", report.Warnings))
				for _, issue := range report.Issues {
					kv(issue.Type, fmt.Sprintf("[%s] %s: %s", issue.Severity, issue.FeatID, issue.Description))
				}
			}

			if report.CriticalIssues > 0 {
				return fmt.Errorf("%d critical issue(s) found: %w", report.CriticalIssues, harnesserr.ErrInvalidTransition)
			}
			return nil
		},
	}
}
