package gate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bagakit/ft-harness/internal/model"
)

func TestDetectProjectTypeExplicitConfigWins(t *testing.T) {
	cfg := model.GateConfig{ProjectType: ProjectTypeUI}
	assert.Equal(t, ProjectTypeUI, DetectProjectType(cfg, t.TempDir()))
}

func TestDetectProjectTypeRuleMatch(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte("{}"), 0o644))

	cfg := model.GateConfig{
		ProjectType: "auto",
		ProjectTypeRules: []model.ProjectTypeRule{
			{Name: "node-ui", ProjectType: ProjectTypeUI, AnyFile: []string{"package.json"}},
		},
	}
	assert.Equal(t, ProjectTypeUI, DetectProjectType(cfg, dir))
}

func TestDetectProjectTypeDefaultsToNonUI(t *testing.T) {
	cfg := model.GateConfig{ProjectType: "auto"}
	assert.Equal(t, ProjectTypeNonUI, DetectProjectType(cfg, t.TempDir()))
}

func TestDetectProjectTypeRuleMissMovesOn(t *testing.T) {
	dir := t.TempDir()
	cfg := model.GateConfig{
		ProjectType: "auto",
		ProjectTypeRules: []model.ProjectTypeRule{
			{Name: "node-ui", ProjectType: ProjectTypeUI, AnyFile: []string{"package.json"}},
		},
	}
	assert.Equal(t, ProjectTypeNonUI, DetectProjectType(cfg, dir))
}
