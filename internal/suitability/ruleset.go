package suitability

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/land-suitability/internal/raster"
)

// RuleSet is the full set of scoring tables for one crop.
type RuleSet struct {
	Crop        string           `yaml:"crop" json:"crop"`
	Categorical []RuleTable      `yaml:"categorical" json:"categorical"`
	Thresholds  []ThresholdTable `yaml:"thresholds" json:"thresholds"`
}

// AvocadoRuleSet returns the five categorical avocado tables.
func AvocadoRuleSet() *RuleSet {
	return &RuleSet{Crop: "avocado", Categorical: AvocadoTables()}
}

// AvocadoClimateRuleSet returns the continuous avocado thresholds.
func AvocadoClimateRuleSet() *RuleSet {
	return &RuleSet{Crop: "avocado", Thresholds: AvocadoClimateThresholds()}
}

// LoadRuleFile reads a rule set from a YAML file.
func LoadRuleFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "suitability: read rule file %s", path)
	}
	rs, err := ParseRuleSet(data)
	if err != nil {
		return nil, eris.Wrapf(err, "suitability: rule file %s", path)
	}
	return rs, nil
}

// ParseRuleSet decodes and validates a YAML rule set.
func ParseRuleSet(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, eris.Wrap(err, "suitability: parse rule set")
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Validate checks every table and that no factor is scored twice.
func (rs *RuleSet) Validate() error {
	if len(rs.Categorical) == 0 && len(rs.Thresholds) == 0 {
		return eris.New("suitability: rule set has no tables")
	}

	seen := make(map[Factor]bool)
	var dups []string
	for _, t := range rs.Categorical {
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.Factor] {
			dups = append(dups, string(t.Factor))
		}
		seen[t.Factor] = true
	}
	for _, t := range rs.Thresholds {
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.Factor] {
			dups = append(dups, string(t.Factor))
		}
		seen[t.Factor] = true
	}
	if len(dups) > 0 {
		return eris.Errorf("suitability: factors scored more than once: %s", strings.Join(dups, ", "))
	}
	return nil
}

// Factors returns the factors scored by the set, categorical first.
func (rs *RuleSet) Factors() []Factor {
	out := make([]Factor, 0, len(rs.Categorical)+len(rs.Thresholds))
	for _, t := range rs.Categorical {
		out = append(out, t.Factor)
	}
	for _, t := range rs.Thresholds {
		out = append(out, t.Factor)
	}
	return out
}

// Reclassify scores one factor's raw grid with whichever table covers it.
func (rs *RuleSet) Reclassify(f Factor, grid *raster.Grid) (*raster.Grid, error) {
	for _, t := range rs.Categorical {
		if t.Factor == f {
			return Reclassify(grid, t)
		}
	}
	for _, t := range rs.Thresholds {
		if t.Factor == f {
			return ReclassifyThresholds(grid, t)
		}
	}
	return nil, eris.Errorf("suitability: no table for factor %s", f)
}
