package dedup

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning bundles the hand-tuned matching constants: synonym groups, source
// priorities, keyword signatures, and override thresholds. Values are loaded
// from a YAML file when one is configured; absent sections fall back to the
// compiled-in defaults. The constants match observed analyst judgment and
// are deliberately not derived or re-fitted.
type Tuning struct {
	SynonymGroups     [][]string          `yaml:"synonym_groups"`
	SourcePriorities  map[string]int      `yaml:"source_priorities"`
	KeywordSignatures [][]string          `yaml:"keyword_signatures"`
	Overrides         *OverrideThresholds `yaml:"overrides"`
}

// DefaultTuning returns a tuning with all defaults in place
func DefaultTuning() *Tuning {
	defaults := DefaultOverrideThresholds()
	return &Tuning{
		SynonymGroups:     nil, // nil means the similarity package defaults
		SourcePriorities:  DefaultSourcePriorities,
		KeywordSignatures: DefaultKeywordSignatures,
		Overrides:         &defaults,
	}
}

// LoadTuning reads a tuning YAML file. A missing file is not an error; the
// defaults are returned.
func LoadTuning(path string) (*Tuning, error) {
	tuning := DefaultTuning()
	if path == "" {
		return tuning, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return tuning, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file %s: %w", path, err)
	}

	var loaded Tuning
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse tuning file %s: %w", path, err)
	}

	if loaded.SynonymGroups != nil {
		tuning.SynonymGroups = loaded.SynonymGroups
	}
	if loaded.SourcePriorities != nil {
		tuning.SourcePriorities = loaded.SourcePriorities
	}
	if loaded.KeywordSignatures != nil {
		tuning.KeywordSignatures = loaded.KeywordSignatures
	}
	if loaded.Overrides != nil {
		tuning.Overrides = loaded.Overrides
	}

	return tuning, nil
}

// OverrideRules builds the ordered rule list from this tuning
func (t *Tuning) OverrideRules() []OverrideRule {
	thresholds := DefaultOverrideThresholds()
	if t.Overrides != nil {
		thresholds = *t.Overrides
	}
	signatures := t.KeywordSignatures
	if signatures == nil {
		signatures = DefaultKeywordSignatures
	}
	return BuildOverrideRules(thresholds, signatures)
}

// Priorities returns the source priority table from this tuning
func (t *Tuning) Priorities() map[string]int {
	if t.SourcePriorities == nil {
		return DefaultSourcePriorities
	}
	return t.SourcePriorities
}
