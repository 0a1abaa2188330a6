// Package gate implements the quality-gate runner (C4, §4.4): project-type
// detection, UI evidence-file checking, non-UI command execution, and
// append-only evidence capture.
package gate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/bagakit/ft-harness/internal/harnesserr"
	"github.com/bagakit/ft-harness/internal/layout"
	"github.com/bagakit/ft-harness/internal/model"
)

// Runner executes the quality gate for one task invocation.
type Runner struct {
	Layout *layout.Layout
}

// New returns a Runner bound to the given layout.
func New(l *layout.Layout) *Runner {
	return &Runner{Layout: l}
}

// Result is the outcome of one gate run.
type Result struct {
	ProjectType string
	Pass        bool
	Evidence    []model.GateEvidence
}

// Run executes the gate for featID/taskID inside worktreePath and returns
// the new evidence records to append to the task (§4.4 "a gate may be
// re-run; re-runs append — they do not overwrite history").
func (r *Runner) Run(ctx context.Context, cfg model.GateConfig, worktreePath, featID, taskID string) (*Result, error) {
	projectType := DetectProjectType(cfg, worktreePath)
	if projectType == ProjectTypeUI {
		return r.runUI(ctx, cfg, worktreePath, featID, taskID)
	}
	return r.runNonUI(ctx, cfg, worktreePath, featID, taskID)
}

func (r *Runner) runUI(ctx context.Context, cfg model.GateConfig, worktreePath, featID, taskID string) (*Result, error) {
	res := &Result{ProjectType: ProjectTypeUI}

	evidencePath := cfg.UIEvidencePath
	if evidencePath == "" {
		evidencePath = "ui-verification.md"
	}
	fullPath := filepath.Join(r.Layout.GateEvidenceDir(featID, taskID), evidencePath)
	info, err := os.Stat(fullPath)
	res.Pass = err == nil && info.Size() > 0

	// Optional commands run but never fail the UI gate (§4.4).
	for _, cmd := range cfg.NonUICommands {
		ev, runErr := r.runOne(ctx, cmd, cfg.TimeoutSeconds, worktreePath, featID, taskID)
		if runErr != nil {
			return nil, runErr
		}
		res.Evidence = append(res.Evidence, ev)
	}

	if !res.Pass {
		return res, fmt.Errorf("UI evidence file %s missing or empty: %w", fullPath, harnesserr.ErrGateFailure)
	}
	return res, nil
}

func (r *Runner) runNonUI(ctx context.Context, cfg model.GateConfig, worktreePath, featID, taskID string) (*Result, error) {
	res := &Result{ProjectType: ProjectTypeNonUI}

	if len(cfg.NonUICommands) == 0 {
		return res, fmt.Errorf("non_ui project has zero configured gate commands: %w", harnesserr.ErrGateFailure)
	}

	mode := cfg.NonUIMode
	if mode == "" {
		mode = "any"
	}

	anySucceeded := false
	allSucceeded := true
	for _, cmd := range cfg.NonUICommands {
		ev, err := r.runOne(ctx, cmd, cfg.TimeoutSeconds, worktreePath, featID, taskID)
		if err != nil {
			return nil, err
		}
		res.Evidence = append(res.Evidence, ev)
		if ev.ExitCode == 0 {
			anySucceeded = true
		} else {
			allSucceeded = false
		}
	}

	if mode == "all" {
		res.Pass = allSucceeded
	} else {
		res.Pass = anySucceeded
	}

	if !res.Pass {
		return res, fmt.Errorf("no gate command satisfied non_ui_mode=%s: %w", mode, harnesserr.ErrGateFailure)
	}
	return res, nil
}

// runOne runs a single gate command, capturing stdout to a file under the
// task's gate evidence directory and returning the evidence record. A
// configured deadline signals the child on expiry; the signal is recorded
// as the exit code, never as a Go error (§5 "Cancellation & timeouts").
func (r *Runner) runOne(ctx context.Context, command string, timeoutSeconds int, worktreePath, featID, taskID string) (model.GateEvidence, error) {
	runID := uuid.NewString()
	dir := r.Layout.GateEvidenceDir(featID, taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.GateEvidence{}, fmt.Errorf("creating gate evidence dir %s: %w", dir, harnesserr.ErrIOError)
	}
	stdoutPath := filepath.Join(dir, runID+".stdout.log")

	runCtx := ctx
	var cancel context.CancelFunc
	if timeoutSeconds > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSeconds)*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "bash", "-lc", command)
	cmd.Dir = worktreePath
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	started := time.Now().UTC()
	err := cmd.Run()
	finished := time.Now().UTC()

	if writeErr := os.WriteFile(stdoutPath, buf.Bytes(), 0o644); writeErr != nil {
		return model.GateEvidence{}, fmt.Errorf("writing gate evidence %s: %w", stdoutPath, harnesserr.ErrIOError)
	}

	exitCode := exitCodeOf(err)
	return model.GateEvidence{
		RunID:      runID,
		Command:    command,
		ExitCode:   exitCode,
		StdoutPath: stdoutPath,
		StartedAt:  started,
		FinishedAt: finished,
	}, nil
}

// exitCodeOf extracts a process exit code, mapping a signal-terminated
// child to the negative signal number (§5: "the engine treats
// signal-terminated children as gate failure").
func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !asExitError(err, &exitErr) {
		return -1
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return exitErr.ExitCode()
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}
