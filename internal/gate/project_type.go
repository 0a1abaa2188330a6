package gate

import (
	"os"
	"path/filepath"

	"github.com/bagakit/ft-harness/internal/model"
)

const (
	ProjectTypeUI    = "ui"
	ProjectTypeNonUI = "non_ui"
)

// DetectProjectType resolves §4.4's precedence: explicit config, then
// rule-driven detection over project_type_rules, then non_ui by default.
func DetectProjectType(cfg model.GateConfig, worktreePath string) string {
	if cfg.ProjectType == ProjectTypeUI || cfg.ProjectType == ProjectTypeNonUI {
		return cfg.ProjectType
	}
	for _, rule := range cfg.ProjectTypeRules {
		if anyFileExists(worktreePath, rule.AnyFile) {
			return rule.ProjectType
		}
	}
	return ProjectTypeNonUI
}

func anyFileExists(root string, names []string) bool {
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			return true
		}
	}
	return false
}
