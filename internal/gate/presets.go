package gate

import (
	_ "embed"

	"github.com/BurntSushi/toml"

	"github.com/bagakit/ft-harness/internal/model"
)

//go:embed presets.toml
var presetsTOML []byte

type presetRule struct {
	Name        string   `toml:"name"`
	ProjectType string   `toml:"project_type"`
	AnyFile     []string `toml:"any_file"`
}

type presetDoc struct {
	Rule []presetRule `toml:"rule"`
}

// BuiltinProjectTypeRules decodes the embedded preset file into the ordered
// rule set initialize-harness seeds new configs with (§4.4
// "project_type_rules").
func BuiltinProjectTypeRules() ([]model.ProjectTypeRule, error) {
	var doc presetDoc
	if _, err := toml.Decode(string(presetsTOML), &doc); err != nil {
		return nil, err
	}
	rules := make([]model.ProjectTypeRule, 0, len(doc.Rule))
	for _, r := range doc.Rule {
		rules = append(rules, model.ProjectTypeRule{
			Name:        r.Name,
			ProjectType: r.ProjectType,
			AnyFile:     r.AnyFile,
		})
	}
	return rules, nil
}
