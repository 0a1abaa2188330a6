// Package config loads and persists the harness's project-wide settings
// document (§3 "Config", §6 "config.json"). Precedence mirrors the
// teacher's layering discipline: built-in defaults, then the on-disk file,
// then environment overrides, then validation — but the file format is
// JSON (matching the rest of the SSOT, §4.1) rather than the teacher's
// TOML.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bagakit/ft-harness/internal/harnesserr"
	"github.com/bagakit/ft-harness/internal/layout"
	"github.com/bagakit/ft-harness/internal/model"
)

// Load reads config.json, layering it over model.DefaultConfig(). A
// missing file is not an error — initialize-harness is what creates it;
// commands run against an uninitialized repo simply see the defaults.
func Load(l *layout.Layout) (*model.Config, error) {
	cfg := model.DefaultConfig()

	b, err := os.ReadFile(l.ConfigPath())
	switch {
	case err == nil:
		if uerr := json.Unmarshal(b, cfg); uerr != nil {
			return nil, fmt.Errorf("parsing %s: %w: %v", l.ConfigPath(), harnesserr.ErrCorrupt, uerr)
		}
	case os.IsNotExist(err):
		// rely on defaults
	default:
		return nil, fmt.Errorf("reading %s: %w", l.ConfigPath(), harnesserr.ErrIOError)
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save persists cfg to config.json (used by initialize-harness).
func Save(l *layout.Layout, cfg *model.Config) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", harnesserr.ErrIOError)
	}
	b = append(b, '\n')
	if err := os.MkdirAll(l.HarnessDir(), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", l.HarnessDir(), harnesserr.ErrIOError)
	}
	if err := os.WriteFile(l.ConfigPath(), b, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", l.ConfigPath(), harnesserr.ErrIOError)
	}
	return nil
}

// applyEnv overlays environment variables that are allowed to override
// config.json (§6 "Environment variables" covers skill/manifest discovery,
// not these project settings, but base_branch and worktrees_root are
// commonly scripted in CI so the same override-if-set discipline applies).
func applyEnv(cfg *model.Config) {
	if v := os.Getenv("BAGAKIT_FT_BASE_BRANCH"); v != "" {
		cfg.BaseBranch = v
	}
	if v := os.Getenv("BAGAKIT_FT_WORKTREES_ROOT"); v != "" {
		cfg.WorktreesRoot = v
	}
}

// Validate checks required fields are present and enum fields hold a
// recognized value.
func Validate(cfg *model.Config) error {
	if cfg.BaseBranch == "" {
		return fmt.Errorf("base_branch is required: %w", harnesserr.ErrCorrupt)
	}
	switch cfg.Gate.ProjectType {
	case "ui", "non_ui", "auto":
	default:
		return fmt.Errorf("gate.project_type must be ui, non_ui, or auto, got %q: %w", cfg.Gate.ProjectType, harnesserr.ErrCorrupt)
	}
	switch cfg.Gate.NonUIMode {
	case "", "any", "all":
	default:
		return fmt.Errorf("gate.non_ui_mode must be any or all, got %q: %w", cfg.Gate.NonUIMode, harnesserr.ErrCorrupt)
	}
	return nil
}

// Env holds the process-level environment variables consulted for
// skill/manifest discovery (§6 "Environment variables"). These are not part
// of the persisted config document.
type Env struct {
	SkillDir            string
	ReferenceSkillsHome string
}

// LoadEnv reads BAGAKIT_FT_SKILL_DIR and BAGAKIT_REFERENCE_SKILLS_HOME.
func LoadEnv() Env {
	return Env{
		SkillDir:            os.Getenv("BAGAKIT_FT_SKILL_DIR"),
		ReferenceSkillsHome: os.Getenv("BAGAKIT_REFERENCE_SKILLS_HOME"),
	}
}
