// Package chart implements Core B, the Chart Rule Engine from spec §4.12:
// given a user question, a derived DataFrame schema, and retrieved context,
// it produces a ranked list of ChartPlans subject to the clinical semantics
// in spec §8 (ICU trend trajectories, identifier-as-group bans, constant-Y
// bar suppression). Grounded in the teacher's rule-table style
// (executor/errortemplates.go's ordered-rule-over-typed-signal pattern)
// generalized from SQL error codes to chart intents.
package chart

import "fmt"

// ChartType is the closed set from spec §3.
type ChartType string

const (
	Line            ChartType = "line"
	Bar             ChartType = "bar"
	BarBasic        ChartType = "bar_basic"
	BarGrouped      ChartType = "bar_grouped"
	BarStacked      ChartType = "bar_stacked"
	BarHGroup       ChartType = "bar_hgroup"
	BarHStack       ChartType = "bar_hstack"
	BarPercent      ChartType = "bar_percent"
	BarHPercent     ChartType = "bar_hpercent"
	Lollipop        ChartType = "lollipop"
	Hist            ChartType = "hist"
	Scatter         ChartType = "scatter"
	Box             ChartType = "box"
	Violin          ChartType = "violin"
	Pie             ChartType = "pie"
	NestedPie       ChartType = "nested_pie"
	Heatmap         ChartType = "heatmap"
	Treemap         ChartType = "treemap"
	Area            ChartType = "area"
	Pyramid         ChartType = "pyramid"
	ConfusionMatrix ChartType = "confusion_matrix"
	DynamicScatter  ChartType = "dynamic_scatter"
	LineScatter     ChartType = "line_scatter"
)

// ChartSpec is spec §3's ChartSpec, field-for-field.
type ChartSpec struct {
	ChartType      ChartType         `json:"chartType"`
	X              string            `json:"x,omitempty"`
	Y              string            `json:"y,omitempty"`
	Group          string            `json:"group,omitempty"`
	SecondaryGroup string            `json:"secondaryGroup,omitempty"`
	Agg            string            `json:"agg,omitempty"`
	Size           string            `json:"size,omitempty"`
	AnimationFrame string            `json:"animationFrame,omitempty"`
	Mode           string            `json:"mode,omitempty"`
	BarMode        string            `json:"barMode,omitempty"`
	Orientation    string            `json:"orientation,omitempty"`
	SeriesCols     []string          `json:"seriesCols,omitempty"`
	MaxCategories  int               `json:"maxCategories,omitempty"`
	Titles         map[string]string `json:"titles,omitempty"`
}

// key is the composite dedupe key from spec §8 invariant 6.
func (s ChartSpec) key() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%v",
		s.ChartType, s.X, s.Y, s.Group, s.SecondaryGroup, s.Agg, s.Size,
		s.AnimationFrame, s.Mode, s.BarMode, s.Orientation, s.SeriesCols)
}

// ChartPlan is spec §3's ChartPlan.
type ChartPlan struct {
	ChartSpec ChartSpec `json:"chartSpec"`
	Reason    string    `json:"reason"`
}

// Intent is the chart-intent enum the Intent Extractor (§4.12) produces.
type Intent string

const (
	IntentTrend       Intent = "trend"
	IntentDistribution Intent = "distribution"
	IntentComparison  Intent = "comparison"
	IntentProportion  Intent = "proportion"
	IntentCorrelation Intent = "correlation"
	IntentOverview    Intent = "overview"
)

// MultiSplit carries the user's explicit axis/group/secondaryGroup request,
// when the question names them directly (e.g. "성별분포로 나눠서").
type MultiSplit struct {
	Axis           string
	Group          string
	SecondaryGroup string
}

// ContextFlags are the derived booleans from spec §4.12's input tuple.
type ContextFlags struct {
	ICUContext   bool
	AdmitContext bool
	PostDays     int // 0 if absent
}

// Request is the Core B input tuple from spec §4.12.
type Request struct {
	Intent           Intent
	PrimaryOutcome   string
	TimeVar          string
	GroupVar         string
	UserQuery        string
	RecommendedChart string
	MultiSplit       *MultiSplit
	ContextFlags     ContextFlags
}

// ColumnKind classifies a DataFrame column for validation purposes.
type ColumnKind string

const (
	KindNumeric     ColumnKind = "numeric"
	KindCategorical ColumnKind = "categorical"
	KindDatetime    ColumnKind = "datetime"
	KindIdentifier  ColumnKind = "identifier"
)

// Column describes one DataFrame column's shape, the Core B half of spec
// §4.12's "derived DataFrame schema" input.
type Column struct {
	Name    string
	Kind    ColumnKind
	NUnique int // distinct non-null value count; -1 if unknown
}

// DataFrame is the minimal schema Core B needs: columns plus enough stats
// (NUnique) to enforce cardinality and constant-Y rules. Row-level values
// are never inspected; Core B only reasons about shape.
type DataFrame struct {
	Columns []Column
}

// Col looks up a column by name, or the zero Column with Kind="" if absent.
func (df DataFrame) Col(name string) (Column, bool) {
	for _, c := range df.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// IsIdentifier reports whether name is a MIMIC identifier column (spec
// §4.12's "identifier columns are banned as groups").
func IsIdentifier(name string) bool {
	switch name {
	case "SUBJECT_ID", "PATIENT_ID", "HADM_ID", "STAY_ID", "ROW_ID":
		return true
	}
	return false
}
