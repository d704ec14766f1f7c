package rules

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/reconkg/engine/internal/kgerrors"
	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsYAML []byte

type presetDef struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	RuleText    string `yaml:"ruleText"`
}

// SeedPresets inserts every built-in preset that is not already present,
// idempotently (spec §4.8's "built-in presets are seeded on first use").
func (s *Store) SeedPresets(ctx context.Context) error {
	defs, err := loadPresetDefs()
	if err != nil {
		return err
	}
	for _, d := range defs {
		if err := s.seedPreset(ctx, d.Name, d.Description, d.RuleText); err != nil {
			return err
		}
	}
	return nil
}

func loadPresetDefs() ([]presetDef, error) {
	var defs []presetDef
	if err := yaml.Unmarshal(presetsYAML, &defs); err != nil {
		return nil, fmt.Errorf("parse embedded presets.yaml: %w", kgerrors.ErrStorage)
	}
	return defs, nil
}

// ResolveRuleText finds a named Datalog program, trying the rule store first
// (covers both user-saved rules and seeded presets) per spec §4.8's
// "unknown pattern names ... resolve first against the rule store, then
// raise NotFound".
func (s *Store) ResolveRuleText(ctx context.Context, name string) (string, error) {
	r, err := s.FindByName(ctx, name)
	if err != nil {
		return "", err
	}
	return r.RuleText, nil
}
