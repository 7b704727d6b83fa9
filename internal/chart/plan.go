package chart

import "strings"

// RuleEngine generates candidate ChartPlans for a Request against a
// DataFrame, per intent, following spec §4.12's plan-generation table. It is
// pure and deterministic — the LLM only runs upstream in the Intent
// Extractor.
type RuleEngine struct {
	Thresholds Thresholds
}

// NewRuleEngine builds a RuleEngine with the given thresholds.
func NewRuleEngine(t Thresholds) RuleEngine {
	return RuleEngine{Thresholds: t}
}

// Plan runs the full Core B pipeline: generate candidates for req.Intent,
// then the shared post-process pass (dedupe, explicit-chart injection,
// bar-style ordering, constant-Y suppression, maxCategories default).
func (e RuleEngine) Plan(req Request, df DataFrame) []ChartPlan {
	return PostProcess(req, df, generate(req, df, e.thresholds()))
}

func (e RuleEngine) thresholds() Thresholds {
	if e.Thresholds == (Thresholds{}) {
		return DefaultThresholds
	}
	return e.Thresholds
}

// generate dispatches to the per-intent candidate builder, spec §4.12's
// plan-generation table.
func generate(req Request, df DataFrame, th Thresholds) []ChartPlan {
	switch req.Intent {
	case IntentTrend:
		return planTrend(req, df, th)
	case IntentDistribution:
		return planDistribution(req, df)
	case IntentComparison:
		return planComparison(req, df, th)
	case IntentProportion:
		return planProportion(req, df, th)
	case IntentCorrelation:
		return planCorrelation(req, df)
	default:
		return planOverview(req, df)
	}
}

// groupFor resolves the trajectory/trend group (spec §4.12's
// "group=patientGroup|groupVar"): it never reads MultiSplit, which is
// reserved for the comparison/proportion axis+split triple.
func groupFor(req Request, fallback string) string {
	if req.GroupVar != "" {
		return req.GroupVar
	}
	return fallback
}

// axisFor resolves the comparison/proportion categorical x-axis: the user's
// explicit multi-split axis first, then the general GroupVar, then fallback.
func axisFor(req Request, fallback string) string {
	if req.MultiSplit != nil && req.MultiSplit.Axis != "" {
		return req.MultiSplit.Axis
	}
	if req.GroupVar != "" {
		return req.GroupVar
	}
	return fallback
}

// colorGroupFor resolves the comparison/proportion color split (chart
// "group"), distinct from the x-axis.
func colorGroupFor(req Request) string {
	if req.MultiSplit != nil {
		return req.MultiSplit.Group
	}
	return ""
}

func secondaryGroupFor(req Request) string {
	if req.MultiSplit != nil {
		return req.MultiSplit.SecondaryGroup
	}
	return ""
}

func planTrend(req Request, df DataFrame, th Thresholds) []ChartPlan {
	x := req.TimeVar
	if req.ContextFlags.ICUContext {
		if e := ElapsedTimeColumn(df); e != "" {
			x = e
		}
	}
	group := groupFor(req, "")
	if req.ContextFlags.ICUContext && group == "" {
		group = "STAY_ID"
	}
	if issues := validatePlan(req, df, x, group); len(issues) > 0 {
		return []ChartPlan{{
			ChartSpec: ChartSpec{ChartType: Hist, X: req.PrimaryOutcome},
			Reason:    "trend plan failed validation (" + joinIssues(issues) + "); falling back to distribution overview",
		}}
	}

	ct := Line
	mode := ""
	reason := "time-series trend over " + x
	if strings.Contains(req.UserQuery, "산점도") || strings.Contains(strings.ToLower(req.UserQuery), "scatter") {
		ct = LineScatter
		mode = "lines+markers"
	}
	plans := []ChartPlan{
		{ChartSpec: ChartSpec{ChartType: ct, X: x, Y: req.PrimaryOutcome, Group: group, Mode: mode}, Reason: reason},
	}

	if group != "" {
		if col, ok := df.Col(group); ok && col.NUnique > 0 && col.NUnique <= th.TrendAreaGroupMax {
			plans = append(plans, ChartPlan{
				ChartSpec: ChartSpec{ChartType: Area, X: x, Y: req.PrimaryOutcome, Group: group},
				Reason:    "low-cardinality group (<=8) supports a stacked-area alternative",
			})
		}
	}

	plans = append(plans, ChartPlan{
		ChartSpec: ChartSpec{ChartType: Box, X: x, Y: req.PrimaryOutcome},
		Reason:    "distribution-by-time always accompanies a trend plan",
	})
	return plans
}

func planDistribution(req Request, df DataFrame) []ChartPlan {
	plans := []ChartPlan{
		{ChartSpec: ChartSpec{ChartType: Hist, X: req.PrimaryOutcome}, Reason: "univariate distribution of " + req.PrimaryOutcome},
		{ChartSpec: ChartSpec{ChartType: Violin, Y: req.PrimaryOutcome}, Reason: "shape + density of " + req.PrimaryOutcome},
	}
	group := groupFor(req, "")
	if validGroup(group) {
		plans = append(plans,
			ChartPlan{ChartSpec: ChartSpec{ChartType: Box, X: group, Y: req.PrimaryOutcome}, Reason: "distribution of " + req.PrimaryOutcome + " by " + group},
			ChartPlan{ChartSpec: ChartSpec{ChartType: Violin, X: group, Y: req.PrimaryOutcome}, Reason: "density of " + req.PrimaryOutcome + " by " + group},
		)
	}
	return plans
}

func planComparison(req Request, df DataFrame, th Thresholds) []ChartPlan {
	axis := axisFor(req, "")
	group := colorGroupFor(req)
	secondary := secondaryGroupFor(req)
	y := req.PrimaryOutcome

	var plans []ChartPlan
	if !validGroup(axis) {
		return []ChartPlan{{ChartSpec: ChartSpec{ChartType: Hist, X: y}, Reason: "comparison axis invalid or identifier; falling back to distribution overview"}}
	}

	plans = append(plans,
		ChartPlan{ChartSpec: ChartSpec{ChartType: BarBasic, X: axis, Y: y}, Reason: "simple bar comparison across " + axis},
		ChartPlan{ChartSpec: ChartSpec{ChartType: Lollipop, X: axis, Y: y}, Reason: "lollipop alternative to a simple bar"},
		ChartPlan{ChartSpec: ChartSpec{ChartType: Box, X: axis, Y: y}, Reason: "distribution-aware comparison across " + axis},
	)

	if validGroup(group) && validGroup(secondary) {
		plans = append(plans,
			ChartPlan{ChartSpec: ChartSpec{ChartType: Treemap, Group: group, SecondaryGroup: secondary, Y: y}, Reason: "hierarchical share across two categorical splits"},
			ChartPlan{ChartSpec: ChartSpec{ChartType: BarGrouped, X: axis, Y: y, Group: group, SecondaryGroup: secondary, BarMode: "group"}, Reason: "grouped bar across " + axis + " split by " + group + "/" + secondary},
			ChartPlan{ChartSpec: ChartSpec{ChartType: BarStacked, X: axis, Y: y, Group: group, SecondaryGroup: secondary, BarMode: "stack"}, Reason: "stacked bar across " + axis + " split by " + group + "/" + secondary},
			ChartPlan{ChartSpec: ChartSpec{ChartType: BarHStack, X: axis, Y: y, Group: group, SecondaryGroup: secondary, BarMode: "stack", Orientation: "h"}, Reason: "horizontal stacked alternative"},
		)
		if gc, ok := df.Col(group); ok && gc.NUnique > 0 && gc.NUnique <= th.LowCardinalityGroupMax {
			if sc, ok := df.Col(secondary); ok && sc.NUnique > 0 && sc.NUnique <= th.LowCardinalityGroupMax {
				plans = append(plans, ChartPlan{
					ChartSpec: ChartSpec{ChartType: Heatmap, X: group, Y: secondary, Size: y},
					Reason:    "both splits low-cardinality: heatmap alternative",
				})
				plans = append(plans, ChartPlan{
					ChartSpec: ChartSpec{ChartType: ConfusionMatrix, X: group, Y: secondary, Size: y},
					Reason:    "two categorical groups, reasonable cardinality: confusion-matrix layout",
				})
			}
		}
		if mentionsPercent(req.UserQuery) {
			plans = append(plans, ChartPlan{
				ChartSpec: ChartSpec{ChartType: BarPercent, X: axis, Y: y, Group: group, SecondaryGroup: secondary, BarMode: "percent"},
				Reason:    "question mentioned percent/비율: 100%-stacked variant",
			})
		}
		plans = append(plans, ChartPlan{
			ChartSpec: ChartSpec{ChartType: NestedPie, Group: group, SecondaryGroup: secondary, Y: y},
			Reason:    "non-bar alternative for two nested categorical splits",
		})
	}

	return plans
}

func planProportion(req Request, df DataFrame, th Thresholds) []ChartPlan {
	group := axisFor(req, "")
	secondary := secondaryGroupFor(req)
	y := req.PrimaryOutcome

	if req.TimeVar != "" {
		return []ChartPlan{{ChartSpec: ChartSpec{ChartType: Line, X: req.TimeVar, Y: y, Group: group}, Reason: "time variable present: proportion over time is a line chart"}}
	}

	var plans []ChartPlan
	if !validGroup(group) {
		return []ChartPlan{{ChartSpec: ChartSpec{ChartType: Hist, X: y}, Reason: "proportion group invalid or identifier; falling back to distribution overview"}}
	}

	if col, ok := df.Col(group); ok && col.NUnique > 0 && col.NUnique <= th.PieGroupMax {
		plans = append(plans, ChartPlan{ChartSpec: ChartSpec{ChartType: Pie, Group: group, Y: y}, Reason: "low-cardinality group (<=pieGroupMax): pie chart"})
	} else {
		plans = append(plans, ChartPlan{ChartSpec: ChartSpec{ChartType: BarBasic, X: group, Y: y}, Reason: "high-cardinality group: bar chart instead of pie"})
	}

	if validGroup(secondary) {
		plans = append(plans,
			ChartPlan{ChartSpec: ChartSpec{ChartType: BarGrouped, X: group, Y: y, Group: secondary, BarMode: "group"}, Reason: "secondary group present: grouped bar variant"},
			ChartPlan{ChartSpec: ChartSpec{ChartType: BarStacked, X: group, Y: y, Group: secondary, BarMode: "stack"}, Reason: "secondary group present: stacked bar variant"},
			ChartPlan{ChartSpec: ChartSpec{ChartType: BarHStack, X: group, Y: y, Group: secondary, BarMode: "stack", Orientation: "h"}, Reason: "secondary group present: horizontal stacked variant"},
		)
		if mentionsPercent(req.UserQuery) {
			plans = append(plans, ChartPlan{ChartSpec: ChartSpec{ChartType: BarPercent, X: group, Y: y, Group: secondary, BarMode: "percent"}, Reason: "percent phrasing: 100%-stacked variant"})
		}
	}
	return plans
}

func planCorrelation(req Request, df DataFrame) []ChartPlan {
	// The second continuous axis is GroupVar (the "other variable" in an
	// x/y scatter); an optional color split comes from MultiSplit.Group,
	// kept distinct so it is never the same column as the x-axis.
	y := req.PrimaryOutcome
	x := req.GroupVar
	if x == "" {
		x = req.TimeVar
	}
	group := colorGroupFor(req)

	ct := Scatter
	spec := ChartSpec{ChartType: ct, X: x, Y: y}
	if validGroup(group) {
		spec.Group = group
	}

	lc := strings.ToLower(req.UserQuery)
	switch {
	case strings.Contains(lc, "dynamic_scatter") || strings.Contains(req.UserQuery, "애니메이션"):
		if frame, size := animationCandidates(df); frame != "" && size != "" {
			spec.ChartType = DynamicScatter
			spec.AnimationFrame = frame
			spec.Size = size
		}
	case strings.Contains(lc, "line_scatter") || strings.Contains(req.UserQuery, "추세선"):
		spec.ChartType = LineScatter
		spec.Mode = "lines+markers"
	}

	return []ChartPlan{{ChartSpec: spec, Reason: "correlation between " + x + " and " + y}}
}

// animationCandidates picks the first datetime column as the animation
// frame and the first numeric column as the size encoding. Column values are
// not inspected, so the size column is not checked to be positive-valued.
func animationCandidates(df DataFrame) (frame, size string) {
	for _, c := range df.Columns {
		if c.Kind == KindDatetime && frame == "" {
			frame = c.Name
		}
		if c.Kind == KindNumeric && size == "" {
			size = c.Name
		}
	}
	return frame, size
}

func planOverview(req Request, df DataFrame) []ChartPlan {
	return []ChartPlan{{ChartSpec: ChartSpec{ChartType: Hist, X: req.PrimaryOutcome}, Reason: "no specific intent matched: histogram overview"}}
}

func mentionsPercent(q string) bool {
	lc := strings.ToLower(q)
	return strings.Contains(lc, "percent") || strings.Contains(q, "퍼센트") || strings.Contains(q, "백분율") || strings.Contains(q, "비율")
}

func joinIssues(issues []ValidationIssue) string {
	var sb strings.Builder
	for i, it := range issues {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(string(it))
	}
	return sb.String()
}
