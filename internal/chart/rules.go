package chart

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Thresholds are the tunable numeric knobs spec SPEC_FULL.md §4.13 calls out
// for the Chart Rule Engine, loaded from the YAML rules file named by
// config.ChartRulesPath so ops can retune without a code change (mirroring
// postprocess.RuleSet's expr/yaml pattern; the chart engine's rules are
// plain numeric thresholds rather than boolean conditions since its
// branching is structural, not predicate-gated).
type Thresholds struct {
	LowCardinalityGroupMax int `yaml:"low_cardinality_group_max"`
	PieGroupMax            int `yaml:"pie_group_max"`
	TrendAreaGroupMax      int `yaml:"trend_area_group_max"`
	DefaultMaxCategories   int `yaml:"default_max_categories"`
}

// DefaultThresholds mirrors the numeric literals named throughout spec §4.12
// (<=8 for trend-area eligibility, <=12 for pie/heatmap/confusion-matrix
// cardinality, maxCategories default 10).
var DefaultThresholds = Thresholds{
	LowCardinalityGroupMax: 12,
	PieGroupMax:            12,
	TrendAreaGroupMax:      8,
	DefaultMaxCategories:   10,
}

// LoadThresholds reads the chart rules file at path. A missing file is not
// an error; it yields DefaultThresholds, matching postprocess.LoadRules's
// tolerant file-probing style.
func LoadThresholds(path string) (Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultThresholds, nil
		}
		return Thresholds{}, fmt.Errorf("chart: read rules file: %w", err)
	}
	t := DefaultThresholds
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Thresholds{}, fmt.Errorf("chart: parse rules file: %w", err)
	}
	return t, nil
}
