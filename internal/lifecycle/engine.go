package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bagakit/ft-harness/internal/commitproto"
	"github.com/bagakit/ft-harness/internal/gate"
	"github.com/bagakit/ft-harness/internal/guards"
	"github.com/bagakit/ft-harness/internal/harnesserr"
	"github.com/bagakit/ft-harness/internal/layout"
	"github.com/bagakit/ft-harness/internal/model"
	"github.com/bagakit/ft-harness/internal/ssot"
	"github.com/bagakit/ft-harness/internal/vcsadapter"
	"github.com/bagakit/ft-harness/internal/worktree"
)

// Engine sequences side effects (SSOT writes, VCS calls, gate runs) after a
// pure transition validates, per §9's design note. It is the sole caller of
// C1/C2/C3/C4 for feat/task lifecycle operations; archive-feat is handled
// separately by internal/archive, which composes these same lower
// components under its own ordered-steps discipline (§4.7).
type Engine struct {
	Layout   *layout.Layout
	Git      *vcsadapter.Git
	Worktree *worktree.Manager
	Gate     *gate.Runner
	Guards   *guards.Runner
}

// New returns an Engine wired to the given lower-level components.
func New(l *layout.Layout, g *vcsadapter.Git, w *worktree.Manager, gt *gate.Runner) *Engine {
	return &Engine{Layout: l, Git: g, Worktree: w, Gate: gt, Guards: guards.NewRunner()}
}

// CreateFeat runs the pre-feat guards, mints a feat id, creates the branch
// and worktree, and persists state.json/tasks.json/index.
func (e *Engine) CreateFeat(ctx context.Context, title, goal, slug, baseBranch string, tasksMD []byte, strict bool, manifestPath string, checker guards.ReferenceReadinessChecker) (*model.Feat, error) {
	gctx := &guards.GuardContext{}
	if err := guards.PopulatePreFeatState(ctx, e.Layout, slug, strict, manifestPath, checker, gctx); err != nil {
		return nil, err
	}
	outcome := e.Guards.Run(ctx, gctx, guards.CreateFeatGuards())
	if outcome.Blocked {
		return nil, fmt.Errorf("%s: %w", outcome.FormatBlockMessage(), harnesserr.ErrInvalidTransition)
	}

	idx, err := ssot.Load[model.IndexDocument](e.Layout.IndexPath())
	if err != nil {
		idx = model.NewIndexDocument()
	}
	featID := nextFeatID(slug, idx, e.Layout)

	branch, err := e.Git.CreateFeatBranch(ctx, featID, baseBranch)
	if err != nil {
		return nil, err
	}
	worktreePath, err := e.Worktree.Create(ctx, featID, branch)
	if err != nil {
		e.rollbackFeatCreation(ctx, featID, branch, false)
		return nil, err
	}

	now := time.Now().UTC()
	feat := &model.Feat{
		ID:           featID,
		Title:        title,
		Goal:         goal,
		Slug:         slug,
		Status:       model.FeatDraft,
		Branch:       branch,
		WorktreePath: worktreePath,
		BaseBranch:   baseBranch,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var tasks []*model.Task
	if len(tasksMD) > 0 {
		tasks, err = ParseTasksMD(tasksMD)
		if err != nil {
			e.rollbackFeatCreation(ctx, featID, branch, false)
			return nil, err
		}
	}

	if _, err := ssot.Mutate(e.Layout.StatePath(featID), func(doc *model.StateDocument) error {
		doc.Feat = *feat
		return nil
	}); err != nil {
		e.rollbackFeatCreation(ctx, featID, branch, false)
		return nil, err
	}
	if _, err := ssot.Mutate(e.Layout.TasksPath(featID), func(doc *model.TasksDocument) error {
		doc.FeatID = featID
		doc.Tasks = tasks
		doc.UpdatedAt = ssot.TouchUpdatedAt(doc.UpdatedAt, now)
		return nil
	}); err != nil {
		e.rollbackFeatCreation(ctx, featID, branch, true)
		return nil, err
	}
	if _, err := ssot.Mutate(e.Layout.IndexPath(), func(doc *model.IndexDocument) error {
		if doc.Feats == nil {
			*doc = *model.NewIndexDocument()
		}
		doc.Put(featID, &model.IndexEntry{
			Title:        feat.Title,
			Status:       feat.Status,
			Branch:       feat.Branch,
			WorktreePath: feat.WorktreePath,
		})
		doc.UpdatedAt = ssot.TouchUpdatedAt(doc.UpdatedAt, now)
		return nil
	}); err != nil {
		e.rollbackFeatCreation(ctx, featID, branch, true)
		return nil, err
	}

	return feat, nil
}

// rollbackFeatCreation best-effort undoes a partially created feat when a
// later step in CreateFeat fails after the branch/worktree (and possibly
// state.json/tasks.json) already exist, so a mid-create failure does not
// leave an orphaned branch and worktree with no index entry (§4.5 "no
// partial state left"). Failures here are swallowed: the caller already has
// the original error to report, and a fresh feat's worktree is never dirty.
func (e *Engine) rollbackFeatCreation(ctx context.Context, featID, branch string, removeSSOTDir bool) {
	if removeSSOTDir {
		_ = os.RemoveAll(e.Layout.FeatDir(featID))
	}
	_ = e.Worktree.Remove(ctx, featID, true)
	_ = e.Git.DeleteBranch(ctx, branch, true)
}

// StartTask transitions a planned (or blocked) task to in_progress. If
// taskID is empty, the lowest-numbered planned task is selected (§8 "S4
// Concurrent mint").
func (e *Engine) StartTask(ctx context.Context, featID, taskID string) (*model.Task, error) {
	var started *model.Task
	_, err := ssot.Mutate(e.Layout.TasksPath(featID), func(doc *model.TasksDocument) error {
		for _, t := range doc.Tasks {
			if t.Status == model.TaskInProgress && t.ID != taskID {
				return fmt.Errorf("task %s is already in_progress: %w", t.ID, harnesserr.ErrInvalidTransition)
			}
		}

		target, err := selectStartTarget(doc.Tasks, taskID)
		if err != nil {
			return err
		}
		if _, err := ValidateTaskTransition(target.Status, EventStart); err != nil {
			return err
		}
		target.Status = model.TaskInProgress
		now := time.Now().UTC()
		target.StartedAt = &now
		target.FinishedAt = nil
		started = target
		doc.UpdatedAt = ssot.TouchUpdatedAt(doc.UpdatedAt, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := ssot.Mutate(e.Layout.StatePath(featID), func(doc *model.StateDocument) error {
		doc.Status = model.FeatActive
		doc.UpdatedAt = ssot.TouchUpdatedAt(doc.UpdatedAt, time.Now().UTC())
		return nil
	}); err != nil {
		return nil, err
	}
	return started, nil
}

func selectStartTarget(tasks []*model.Task, taskID string) (*model.Task, error) {
	if taskID != "" {
		for _, t := range tasks {
			if t.ID == taskID {
				return t, nil
			}
		}
		return nil, fmt.Errorf("task %s not found: %w", taskID, harnesserr.ErrNotFound)
	}
	for _, t := range tasks {
		if t.Status == model.TaskPlanned {
			return t, nil
		}
	}
	return nil, fmt.Errorf("no planned task available to start: %w", harnesserr.ErrInvalidTransition)
}

// RunTaskGate executes the quality gate for an in_progress task and appends
// its evidence (§4.4).
func (e *Engine) RunTaskGate(ctx context.Context, featID, taskID string, cfg model.GateConfig) (*gate.Result, error) {
	var worktreePath string
	var gateErr error
	var result *gate.Result

	_, err := ssot.Mutate(e.Layout.TasksPath(featID), func(doc *model.TasksDocument) error {
		task := findTask(doc.Tasks, taskID)
		if task == nil {
			return fmt.Errorf("task %s not found: %w", taskID, harnesserr.ErrNotFound)
		}
		if task.Status != model.TaskInProgress {
			return fmt.Errorf("task %s is %q, not in_progress: %w", taskID, task.Status, harnesserr.ErrInvalidTransition)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	state, err := ssot.Load[model.StateDocument](e.Layout.StatePath(featID))
	if err != nil {
		return nil, err
	}
	worktreePath = state.WorktreePath

	result, gateErr = e.Gate.Run(ctx, cfg, worktreePath, featID, taskID)
	// A gate failure still produces evidence to record (a cancelled or
	// killed command is recorded with its exit code); only a non-gate error
	// (an IO failure writing the evidence files) aborts without recording.
	if result == nil {
		return nil, gateErr
	}

	_, mutErr := ssot.Mutate(e.Layout.TasksPath(featID), func(doc *model.TasksDocument) error {
		task := findTask(doc.Tasks, taskID)
		if task == nil {
			return fmt.Errorf("task %s not found: %w", taskID, harnesserr.ErrNotFound)
		}
		task.GateEvidence = append(task.GateEvidence, result.Evidence...)
		if result.Pass {
			task.GateResult = model.GatePass
		} else {
			task.GateResult = model.GateFail
		}
		doc.UpdatedAt = ssot.TouchUpdatedAt(doc.UpdatedAt, time.Now().UTC())
		return nil
	})
	if mutErr != nil {
		return nil, mutErr
	}
	return result, gateErr
}

// PrepareTaskCommitInput carries the free-text commit sections an operator
// supplies for a task commit (§4.6).
type PrepareTaskCommitInput struct {
	Summary string
	Plan    string
	Check   string
	Learn   string
}

// PrepareTaskCommit emits the commit message file for an gated task. It is
// idempotent: re-invoking with identical inputs and no task-state change
// rewrites the same bytes (§8 property 6).
func (e *Engine) PrepareTaskCommit(ctx context.Context, featID, taskID string, in PrepareTaskCommitInput) (string, error) {
	tasksDoc, err := ssot.Load[model.TasksDocument](e.Layout.TasksPath(featID))
	if err != nil {
		return "", err
	}
	ssot.NormalizeTasksDocument(tasksDoc)
	task := findTask(tasksDoc.Tasks, taskID)
	if task == nil {
		return "", fmt.Errorf("task %s not found: %w", taskID, harnesserr.ErrNotFound)
	}
	if task.GateResult != model.GatePass {
		return "", fmt.Errorf("task %s gate_result is %q, not pass: %w", taskID, task.GateResult, harnesserr.ErrInvalidTransition)
	}

	state, err := ssot.Load[model.StateDocument](e.Layout.StatePath(featID))
	if err != nil {
		return "", err
	}
	hasDiff, err := e.Git.HasDiff(ctx, state.WorktreePath)
	if err != nil {
		return "", err
	}
	if !hasDiff {
		return "", fmt.Errorf("worktree has no staged or unstaged changes: %w", harnesserr.ErrInvalidTransition)
	}

	msg := commitproto.Message{
		FeatID:     featID,
		TaskID:     taskID,
		Summary:    in.Summary,
		Plan:       in.Plan,
		Check:      in.Check,
		Learn:      in.Learn,
		GateResult: model.GatePass,
		TaskStatus: model.TaskDone,
	}
	if err := commitproto.Validate(msg); err != nil {
		return "", err
	}
	body := commitproto.Generate(msg)

	path := e.Layout.CommitMessagePath(featID, taskID)
	if err := os.MkdirAll(dirOf(path), 0o755); err != nil {
		return "", fmt.Errorf("creating commit message dir: %w", harnesserr.ErrIOError)
	}
	if existing, readErr := os.ReadFile(path); readErr == nil && string(existing) == body {
		return path, nil // idempotent re-run, bytes unchanged
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("writing commit message %s: %w", path, harnesserr.ErrIOError)
	}
	return path, nil
}

// FinishTask completes (result="done") or blocks (result="blocked") an
// in_progress task (§4.5).
func (e *Engine) FinishTask(ctx context.Context, featID, taskID, result string) (*model.Task, error) {
	switch result {
	case "done":
		return e.finishTaskDone(ctx, featID, taskID)
	case "blocked":
		return e.finishTaskBlocked(ctx, featID, taskID)
	default:
		return nil, fmt.Errorf("unknown finish-task result %q: %w", result, harnesserr.ErrInvalidTransition)
	}
}

func (e *Engine) finishTaskDone(ctx context.Context, featID, taskID string) (*model.Task, error) {
	state, err := ssot.Load[model.StateDocument](e.Layout.StatePath(featID))
	if err != nil {
		return nil, err
	}
	headMsg, err := e.Git.HeadCommitMessage(ctx, state.WorktreePath)
	if err != nil {
		return nil, err
	}
	parsed, err := commitproto.Parse(headMsg)
	if err != nil {
		return nil, err
	}
	if err := commitproto.Validate(*parsed); err != nil {
		return nil, err
	}
	if parsed.FeatID != featID || parsed.TaskID != taskID {
		return nil, fmt.Errorf("HEAD commit trailers (%s, %s) do not match (%s, %s): %w",
			parsed.FeatID, parsed.TaskID, featID, taskID, harnesserr.ErrTrailerMismatch)
	}
	headSHA, err := e.Git.HeadSHA(ctx, state.WorktreePath)
	if err != nil {
		return nil, err
	}

	var finished *model.Task
	_, err = ssot.Mutate(e.Layout.TasksPath(featID), func(doc *model.TasksDocument) error {
		task := findTask(doc.Tasks, taskID)
		if task == nil {
			return fmt.Errorf("task %s not found: %w", taskID, harnesserr.ErrNotFound)
		}
		if task.GateResult != model.GatePass {
			return fmt.Errorf("task %s gate_result is %q, not pass: %w", taskID, task.GateResult, harnesserr.ErrInvalidTransition)
		}
		if _, err := ValidateTaskTransition(task.Status, EventFinishDone); err != nil {
			return err
		}
		task.Status = model.TaskDone
		task.CommitSHA = headSHA
		now := time.Now().UTC()
		task.FinishedAt = &now
		finished = task
		doc.UpdatedAt = ssot.TouchUpdatedAt(doc.UpdatedAt, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := e.refreshFeatStatus(featID, false); err != nil {
		return nil, err
	}
	return finished, nil
}

func (e *Engine) finishTaskBlocked(ctx context.Context, featID, taskID string) (*model.Task, error) {
	var finished *model.Task
	_, err := ssot.Mutate(e.Layout.TasksPath(featID), func(doc *model.TasksDocument) error {
		task := findTask(doc.Tasks, taskID)
		if task == nil {
			return fmt.Errorf("task %s not found: %w", taskID, harnesserr.ErrNotFound)
		}
		if _, err := ValidateTaskTransition(task.Status, EventFinishBlocked); err != nil {
			return err
		}
		task.Status = model.TaskBlocked
		now := time.Now().UTC()
		task.FinishedAt = &now
		finished = task
		doc.UpdatedAt = ssot.TouchUpdatedAt(doc.UpdatedAt, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := e.refreshFeatStatus(featID, false); err != nil {
		return nil, err
	}
	return finished, nil
}

// AbandonFeat marks a feat abandoned (§4.5: "explicitly set by operator and
// no task is in_progress").
func (e *Engine) AbandonFeat(featID string) error {
	return e.refreshFeatStatus(featID, true)
}

func (e *Engine) refreshFeatStatus(featID string, explicitAbandon bool) error {
	tasksDoc, err := ssot.Load[model.TasksDocument](e.Layout.TasksPath(featID))
	if err != nil {
		return err
	}
	_, err = ssot.Mutate(e.Layout.StatePath(featID), func(doc *model.StateDocument) error {
		status, derr := DeriveFeatStatus(doc.Status, tasksDoc.Tasks, explicitAbandon)
		if derr != nil {
			return derr
		}
		doc.Status = status
		doc.UpdatedAt = ssot.TouchUpdatedAt(doc.UpdatedAt, time.Now().UTC())
		return nil
	})
	if err != nil {
		return err
	}
	_, err = ssot.Mutate(e.Layout.IndexPath(), func(doc *model.IndexDocument) error {
		if entry, ok := doc.Feats[featID]; ok {
			state, loadErr := ssot.Load[model.StateDocument](e.Layout.StatePath(featID))
			if loadErr == nil {
				entry.Status = state.Status
			}
		}
		doc.UpdatedAt = ssot.TouchUpdatedAt(doc.UpdatedAt, time.Now().UTC())
		return nil
	})
	return err
}

func findTask(tasks []*model.Task, id string) *model.Task {
	for _, t := range tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return "."
	}
	return path[:idx]
}

// nextFeatID mints F-<slug>-<NNN> one above the highest counter already used
// with this slug, counting both the index and the feat directories under
// feats-archived/, so an archived feat's id is never minted again.
func nextFeatID(slug string, idx *model.IndexDocument, l *layout.Layout) string {
	ids := make([]string, 0, len(idx.Feats))
	for id := range idx.Feats {
		ids = append(ids, id)
	}
	if entries, err := os.ReadDir(filepath.Join(l.HarnessDir(), "feats-archived")); err == nil {
		for _, entry := range entries {
			ids = append(ids, entry.Name())
		}
	}
	max := 0
	prefix := "F-" + slug + "-"
	for _, id := range ids {
		if strings.HasPrefix(id, prefix) {
			if n, err := strconv.Atoi(strings.TrimPrefix(id, prefix)); err == nil && n > max {
				max = n
			}
		}
	}
	return fmt.Sprintf("%s%03d", prefix, max+1)
}
