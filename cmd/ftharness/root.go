// Command ftharness is the single CLI entry point for the feat/task
// lifecycle engine. Every subcommand shells its work out to the internal
// packages (layout, config, vcsadapter, worktree, gate, lifecycle, archive,
// doctor); this file owns only flag wiring, logging, and output framing —
// grounded on cmd/specmcp/main.go's "load config, build a logger to stderr,
// wire dependencies, dispatch" shape, retargeted from a single long-running
// MCP server to cobra's subcommand-per-operation dispatch (cuemby-warren,
// jra3-linear-fuse).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/bagakit/ft-harness/internal/config"
	"github.com/bagakit/ft-harness/internal/gate"
	"github.com/bagakit/ft-harness/internal/harnesserr"
	"github.com/bagakit/ft-harness/internal/layout"
	"github.com/bagakit/ft-harness/internal/lifecycle"
	"github.com/bagakit/ft-harness/internal/model"
	"github.com/bagakit/ft-harness/internal/vcsadapter"
	"github.com/bagakit/ft-harness/internal/worktree"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Common flags shared by every subcommand (§6 "Common flags").
var (
	flagRoot     string
	flagFeat     string
	flagTask     string
	flagManifest string
	flagStrict   bool
	flagNoStrict bool
	flagJSON     bool
	flagExecute  bool
)

var logger *slog.Logger

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ftharness",
		Short: "Feat/task lifecycle engine",
		Long: "ftharness coordinates multi-session software delivery: it isolates each\n" +
			"feat in its own worktree checkout and funnels lifecycle changes through\n" +
			"deterministic transitions over a JSON single-source-of-truth store.",
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRun:  func(cmd *cobra.Command, args []string) { initLogging() },
	}

	cmd.PersistentFlags().StringVar(&flagRoot, "root", "", "repository root (required)")
	cmd.PersistentFlags().StringVar(&flagFeat, "feat", "", "feat id")
	cmd.PersistentFlags().StringVar(&flagTask, "task", "", "task id")
	cmd.PersistentFlags().StringVar(&flagManifest, "manifest", "", "reference-readiness manifest path")
	cmd.PersistentFlags().BoolVar(&flagStrict, "strict", false, "enforce strict reference-readiness checking")
	cmd.PersistentFlags().BoolVar(&flagNoStrict, "no-strict", false, "disable strict reference-readiness checking (overrides --strict)")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit machine-readable JSON instead of key: value lines")

	cmd.AddCommand(
		newCheckReferenceReadinessCmd(),
		newValidateReferenceReportCmd(),
		newInitializeHarnessCmd(),
		newCreateFeatCmd(),
		newShowFeatStatusCmd(),
		newStartTaskCmd(),
		newRunTaskGateCmd(),
		newPrepareTaskCommitCmd(),
		newFinishTaskCmd(),
		newArchiveFeatCmd(),
		newValidateHarnessCmd(),
		newDiagnoseHarnessCmd(),
		newListFeatsCmd(),
		newGetFeatCmd(),
		newFilterFeatsCmd(),
	)
	return cmd
}

// initLogging wires a JSON handler to stderr, matching cmd/specmcp/main.go's
// "stdout is for protocol/result output, stderr is for diagnostics" split.
func initLogging() {
	level := slog.LevelInfo
	if os.Getenv("FTHARNESS_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// strictMode resolves --strict/--no-strict, with --no-strict taking
// precedence when both are set.
func strictMode() bool {
	if flagNoStrict {
		return false
	}
	return flagStrict
}

// errUsage marks a command-line usage mistake (exit code 2), distinct from
// the harnesserr sentinel taxonomy which covers engine-level failures.
var errUsage = errors.New("usage error")

// requireRoot enforces the "--root is required for every command" rule
// (§6), returning exit code 2 (usage error) rather than threading validation
// through every RunE.
func requireRoot() error {
	if flagRoot == "" {
		return fmt.Errorf("--root is required: %w", errUsage)
	}
	return nil
}

// deps bundles the lower-level components every subcommand wires together.
type deps struct {
	Layout   *layout.Layout
	Config   *model.Config
	Env      config.Env
	Git      *vcsadapter.Git
	Worktree *worktree.Manager
	Gate     *gate.Runner
	Engine   *lifecycle.Engine
}

func buildDeps() (*deps, error) {
	l := layout.New(flagRoot)
	cfg, err := config.Load(l)
	if err != nil {
		return nil, err
	}
	git := vcsadapter.New(flagRoot)
	wt := worktree.New(l, git, cfg.WorktreesRoot)
	gt := gate.New(l)
	eng := lifecycle.New(l, git, wt, gt)
	return &deps{Layout: l, Config: cfg, Env: config.LoadEnv(), Git: git, Worktree: wt, Gate: gt, Engine: eng}, nil
}

// resolveManifestPath returns the --manifest flag when set, otherwise falls
// back to manifest.json under BAGAKIT_REFERENCE_SKILLS_HOME — the
// reference-readiness discovery root (§6 "Environment variables") — so
// --strict and check-reference-readiness have something to consult without
// requiring an explicit flag on every invocation.
func resolveManifestPath(explicit string, env config.Env) string {
	if explicit != "" {
		return explicit
	}
	if env.ReferenceSkillsHome == "" {
		return ""
	}
	return filepath.Join(env.ReferenceSkillsHome, "manifest.json")
}

// kv emits one line of the §6 "line-oriented key-value stream" to stdout.
func kv(key, value string) {
	fmt.Fprintf(os.Stdout, "%s: %s\n", key, value)
}

// printJSON emits v as indented JSON to stdout, used by every subcommand's
// --json branch in place of the key-value stream.
func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "ftharness: marshaling json output: %v\n", err)
		return
	}
	fmt.Fprintln(os.Stdout, string(b))
}

// kvStatus emits a key-value line whose value is colorized when stdout is a
// TTY and --json was not requested (§ ambient CLI texture, grounded on
// cuemby-warren's colorable-stdout detection).
func kvStatus(key, status string) {
	fmt.Fprintf(os.Stdout, "%s: %s\n", key, colorizeStatus(status))
}

// colorizeStatus colors the bare status word a key-value line carries
// ("done", "blocked", "pass", "fail", ...) — every status vocabulary in
// this system (feat, task, gate) shares the same "done"/"pass" = good,
// "blocked"/"fail" = bad, "abandoned" = caution reading, so one switch on
// the string value covers all of them without needing to know which
// vocabulary the caller is colorizing.
func colorizeStatus(status string) string {
	if flagJSON || !isatty.IsTerminal(os.Stdout.Fd()) {
		return status
	}
	switch status {
	case model.FeatDone, model.GatePass:
		return color.GreenString(status)
	case model.TaskBlocked, model.GateFail:
		return color.RedString(status)
	case model.FeatAbandoned:
		return color.YellowString(status)
	default:
		return status
	}
}

// exitCodeFor maps err through harnesserr.ExitCode, printing to stderr
// first.
func exitCodeFor(err error) int {
	if err == nil {
		return harnesserr.ExitOK
	}
	fmt.Fprintf(os.Stderr, "ftharness: %v\n", err)
	if errors.Is(err, errUsage) {
		return harnesserr.ExitUsage
	}
	return harnesserr.ExitCode(err)
}

func ctx() context.Context {
	return context.Background()
}
