package chart

import (
	"regexp"
	"sort"
	"strings"
)

// barRank orders bar-chart variants simple->detailed per spec §4.12:
// bar_basic < bar_grouped < bar_stacked < bar_hgroup < bar_hstack <
// bar_percent < bar_hpercent.
var barRank = map[ChartType]int{
	BarBasic:    0,
	BarGrouped:  1,
	BarStacked:  2,
	BarHGroup:   3,
	BarHStack:   4,
	BarPercent:  5,
	BarHPercent: 6,
}

func isBar(ct ChartType) bool {
	return strings.HasPrefix(string(ct), "bar")
}

var explicitChartWords = map[ChartType]*regexp.Regexp{
	Hist:            regexp.MustCompile(`(?i)(히스토그램|hist(ogram)?)`),
	ConfusionMatrix: regexp.MustCompile(`(?i)(confusion[\s_-]?matrix|혼동\s?행렬)`),
	Bar:             regexp.MustCompile(`(?i)(막대\s?그래프|막대그래프|bar\s?chart)`),
}

var barStyleWords = struct {
	stacked, horizontal, percent, grouped, detailed *regexp.Regexp
}{
	stacked:    regexp.MustCompile(`(?i)(누적|stacked|stack)`),
	horizontal: regexp.MustCompile(`(?i)(가로|horizontal)`),
	percent:    regexp.MustCompile(`(?i)(퍼센트|percent|백분율|100%)`),
	grouped:    regexp.MustCompile(`(?i)(그룹|grouped|나눠서|분포로 나눠)`),
	detailed:   regexp.MustCompile(`(?i)(상세|detailed|세부)`),
}

// explicitPreference resolves which single bar variant the user asked for,
// applying every matched style modifier (spec §4.12's {stacked, horizontal,
// percent, grouped, detailed} set).
func explicitPreference(question string) ChartType {
	stacked := barStyleWords.stacked.MatchString(question)
	horizontal := barStyleWords.horizontal.MatchString(question)
	percent := barStyleWords.percent.MatchString(question)
	grouped := barStyleWords.grouped.MatchString(question) || barStyleWords.detailed.MatchString(question)

	switch {
	case percent && horizontal:
		return BarHPercent
	case percent:
		return BarPercent
	case stacked && horizontal:
		return BarHStack
	case stacked:
		return BarStacked
	case grouped && horizontal:
		return BarHGroup
	case grouped:
		return BarGrouped
	default:
		return BarBasic
	}
}

func reorderForStyle(question string, plans []ChartPlan) []ChartPlan {
	pref := explicitPreference(question)
	sort.SliceStable(plans, func(i, j int) bool {
		bi, iIsBar := barRank[plans[i].ChartSpec.ChartType]
		bj, jIsBar := barRank[plans[j].ChartSpec.ChartType]
		if !iIsBar || !jIsBar {
			return false
		}
		if plans[i].ChartSpec.ChartType == pref {
			return true
		}
		if plans[j].ChartSpec.ChartType == pref {
			return false
		}
		return bi < bj
	})
	return plans
}

// dedupe drops every plan whose ChartSpec.key() composite identity (spec
// §3/§8 invariant 6) repeats an earlier plan's.
func dedupe(plans []ChartPlan) []ChartPlan {
	seen := make(map[string]bool, len(plans))
	out := make([]ChartPlan, 0, len(plans))
	for _, p := range plans {
		k := p.ChartSpec.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return out
}

// dropConstantYBars enforces spec §8 invariant 5: no bar-prefixed plan may
// carry a Y column whose distinct non-null numeric values number <=1.
// Dropped plans are recorded via the returned skip-notes slice so callers
// can surface "bar_skipped_constant_y:<col>" per spec §4.12.
func dropConstantYBars(df DataFrame, plans []ChartPlan) ([]ChartPlan, []string) {
	var notes []string
	out := make([]ChartPlan, 0, len(plans))
	for _, p := range plans {
		if isBar(p.ChartSpec.ChartType) && p.ChartSpec.Y != "" {
			if col, ok := df.Col(p.ChartSpec.Y); ok && col.NUnique >= 0 && col.NUnique <= 1 {
				notes = append(notes, "bar_skipped_constant_y:"+p.ChartSpec.Y)
				continue
			}
		}
		out = append(out, p)
	}
	return out, notes
}

// applyMaxCategories sets the spec §4.12 default (normally 10) for
// bar/lollipop variants that did not already specify one.
func applyMaxCategories(plans []ChartPlan, defaultMax int) []ChartPlan {
	for i := range plans {
		ct := plans[i].ChartSpec.ChartType
		if (isBar(ct) || ct == Lollipop) && plans[i].ChartSpec.MaxCategories == 0 {
			plans[i].ChartSpec.MaxCategories = defaultMax
		}
	}
	return plans
}

// explicitChartRequested reports which built-in chart type (if any) the
// question named directly, per spec §4.12's "user explicitly requested a
// chart" injection rule.
func explicitChartRequested(question string) (ChartType, bool) {
	for ct, re := range explicitChartWords {
		if re.MatchString(question) {
			return ct, true
		}
	}
	return "", false
}

// synthesizeFromSeed builds a minimal plan of chartType using the best seed
// plan's x/y/group as a base, for injection when no candidate of that type
// exists yet.
func synthesizeFromSeed(chartType ChartType, seed ChartPlan) ChartPlan {
	spec := seed.ChartSpec
	spec.ChartType = chartType
	if chartType == Hist {
		spec.Group = ""
		spec.SecondaryGroup = ""
	}
	if chartType == Bar {
		spec.ChartType = BarBasic
	}
	return ChartPlan{ChartSpec: spec, Reason: "synthesized to satisfy explicit chart request: " + string(chartType)}
}

// PostProcess runs the shared Core B post-processing pass from spec §4.12:
// explicit-chart injection-to-front, bar-style reordering, constant-Y
// suppression, the maxCategories default, and a final dedupe. It discards
// the constant-Y skip notes; use PlanWithNotes to observe them.
func PostProcess(req Request, df DataFrame, plans []ChartPlan) []ChartPlan {
	plans, _ = postProcess(req, df, plans, DefaultThresholds.DefaultMaxCategories)
	return plans
}

func postProcess(req Request, df DataFrame, plans []ChartPlan, defaultMaxCategories int) ([]ChartPlan, []string) {
	plans = dedupe(plans)

	if wanted, ok := explicitChartRequested(req.UserQuery); ok {
		found := false
		for _, p := range plans {
			if p.ChartSpec.ChartType == wanted || (wanted == Bar && isBar(p.ChartSpec.ChartType)) {
				found = true
				break
			}
		}
		if !found && len(plans) > 0 {
			plans = append([]ChartPlan{synthesizeFromSeed(wanted, plans[0])}, plans...)
		} else if found {
			sort.SliceStable(plans, func(i, j int) bool {
				mi := plans[i].ChartSpec.ChartType == wanted || (wanted == Bar && isBar(plans[i].ChartSpec.ChartType))
				mj := plans[j].ChartSpec.ChartType == wanted || (wanted == Bar && isBar(plans[j].ChartSpec.ChartType))
				if mi == mj {
					return false
				}
				return mi
			})
		}
	}

	plans = reorderForStyle(req.UserQuery, plans)

	plans, notes := dropConstantYBars(df, plans)
	plans = applyMaxCategories(plans, defaultMaxCategories)
	return dedupe(plans), notes
}

// PlanWithNotes is Plan plus the dropped-constant-Y notes, for callers
// (e.g. the /visualize handler) that want to report suppressions.
func (e RuleEngine) PlanWithNotes(req Request, df DataFrame) ([]ChartPlan, []string) {
	th := e.thresholds()
	plans := generate(req, df, th)
	return postProcess(req, df, plans, th.DefaultMaxCategories)
}
