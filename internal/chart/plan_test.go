package chart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiSplitBarComparison(t *testing.T) {
	df := DataFrame{Columns: []Column{
		{Name: "age_group", Kind: KindCategorical, NUnique: 6},
		{Name: "gender", Kind: KindCategorical, NUnique: 2},
		{Name: "survival_status", Kind: KindCategorical, NUnique: 2},
		{Name: "cnt", Kind: KindNumeric, NUnique: 40},
	}}
	req := Request{
		Intent:         IntentComparison,
		PrimaryOutcome: "cnt",
		UserQuery:      "연령별 사망 생존을 성별분포로 나눠서 막대그래프",
		MultiSplit: &MultiSplit{
			Axis:           "age_group",
			Group:          "gender",
			SecondaryGroup: "survival_status",
		},
	}

	plans := RuleEngine{}.Plan(req, df)
	require.NotEmpty(t, plans)

	first := plans[0].ChartSpec
	assert.Equal(t, BarGrouped, first.ChartType)
	assert.Equal(t, "age_group", first.X)
	assert.Equal(t, "cnt", first.Y)
	assert.Equal(t, "gender", first.Group)
	assert.Equal(t, "survival_status", first.SecondaryGroup)
	assert.Equal(t, "group", first.BarMode)
}

func TestConstantYBarSuppressed(t *testing.T) {
	df := DataFrame{Columns: []Column{
		{Name: "dept", Kind: KindCategorical, NUnique: 4},
		{Name: "flag", Kind: KindNumeric, NUnique: 1},
	}}
	req := Request{
		Intent:         IntentComparison,
		PrimaryOutcome: "flag",
		UserQuery:      "부서별 막대그래프",
		MultiSplit:     &MultiSplit{Axis: "dept"},
	}
	plans := RuleEngine{}.Plan(req, df)
	for _, p := range plans {
		if isBar(p.ChartSpec.ChartType) {
			assert.NotEqual(t, "flag", p.ChartSpec.Y, "constant-Y bar plan must be suppressed")
		}
	}
}

func TestDedupeUniqueKeys(t *testing.T) {
	df := DataFrame{Columns: []Column{
		{Name: "dept", Kind: KindCategorical, NUnique: 4},
		{Name: "cnt", Kind: KindNumeric, NUnique: 20},
	}}
	req := Request{Intent: IntentComparison, PrimaryOutcome: "cnt", MultiSplit: &MultiSplit{Axis: "dept"}}
	plans := RuleEngine{}.Plan(req, df)
	seen := map[string]bool{}
	for _, p := range plans {
		k := p.ChartSpec.key()
		require.False(t, seen[k], "duplicate plan key %s", k)
		seen[k] = true
	}
}

func TestICUTrendRequiresStayIDAndElapsedTime(t *testing.T) {
	df := DataFrame{Columns: []Column{
		{Name: "STAY_ID", Kind: KindIdentifier, NUnique: 500},
		{Name: "INTIME", Kind: KindDatetime, NUnique: 500},
		{Name: "ELAPSED_DAYS", Kind: KindNumeric, NUnique: 30},
		{Name: "LACTATE", Kind: KindNumeric, NUnique: 100},
	}}
	req := Request{
		Intent:         IntentTrend,
		PrimaryOutcome: "LACTATE",
		TimeVar:        "ELAPSED_DAYS",
		UserQuery:      "ICU 환자의 젖산 수치 추세",
		ContextFlags:   ContextFlags{ICUContext: true},
	}
	plans := RuleEngine{}.Plan(req, df)
	require.NotEmpty(t, plans)
	for _, p := range plans {
		if p.ChartSpec.ChartType == Line || p.ChartSpec.ChartType == Area {
			assert.Equal(t, "ELAPSED_DAYS", p.ChartSpec.X)
			if p.ChartSpec.Group != "" {
				assert.Contains(t, []string{"STAY_ID", "HADM_ID"}, p.ChartSpec.Group)
			}
		}
	}
}

func TestICUTrendRejectsSubjectIDGroup(t *testing.T) {
	df := DataFrame{Columns: []Column{
		{Name: "STAY_ID", Kind: KindIdentifier, NUnique: 500},
		{Name: "INTIME", Kind: KindDatetime, NUnique: 500},
		{Name: "ELAPSED_DAYS", Kind: KindNumeric, NUnique: 30},
		{Name: "LACTATE", Kind: KindNumeric, NUnique: 100},
	}}
	req := Request{
		Intent:         IntentTrend,
		PrimaryOutcome: "LACTATE",
		TimeVar:        "ELAPSED_DAYS",
		GroupVar:       "SUBJECT_ID",
		ContextFlags:   ContextFlags{ICUContext: true},
	}
	plans := RuleEngine{}.Plan(req, df)
	require.Len(t, plans, 1)
	assert.Equal(t, Hist, plans[0].ChartSpec.ChartType, "identifier-as-group must fall back, not silently substitute")
}

func TestBarStylePreferenceOrdering(t *testing.T) {
	df := DataFrame{Columns: []Column{
		{Name: "dept", Kind: KindCategorical, NUnique: 4},
		{Name: "shift", Kind: KindCategorical, NUnique: 3},
		{Name: "cnt", Kind: KindNumeric, NUnique: 20},
	}}
	req := Request{
		Intent:         IntentComparison,
		PrimaryOutcome: "cnt",
		UserQuery:      "부서별 교대근무 누적 막대그래프",
		MultiSplit:     &MultiSplit{Axis: "dept", Group: "dept", SecondaryGroup: "shift"},
	}
	plans := RuleEngine{}.Plan(req, df)
	require.NotEmpty(t, plans)
	assert.Equal(t, BarStacked, plans[0].ChartSpec.ChartType)
}

func TestExplicitHistInjectedWhenAbsent(t *testing.T) {
	df := DataFrame{Columns: []Column{
		{Name: "age", Kind: KindNumeric, NUnique: 80},
	}}
	req := Request{
		Intent:         IntentCorrelation,
		PrimaryOutcome: "age",
		GroupVar:       "weight",
		UserQuery:      "나이와 체중의 히스토그램",
	}
	plans := RuleEngine{}.Plan(req, df)
	require.NotEmpty(t, plans)
	assert.Equal(t, Hist, plans[0].ChartSpec.ChartType)
}

func TestRuleIntentFallback(t *testing.T) {
	assert.Equal(t, IntentTrend, RuleIntent("시간에 따른 추세를 보여줘"))
	assert.Equal(t, IntentProportion, RuleIntent("사망 비율이 어떻게 되나요"))
	assert.Equal(t, IntentCorrelation, RuleIntent("나이와 체중의 상관관계"))
	assert.Equal(t, IntentOverview, RuleIntent("아무 데이터나 보여줘"))
}

func TestMaxCategoriesDefault(t *testing.T) {
	df := DataFrame{Columns: []Column{
		{Name: "dept", Kind: KindCategorical, NUnique: 4},
		{Name: "cnt", Kind: KindNumeric, NUnique: 20},
	}}
	req := Request{Intent: IntentComparison, PrimaryOutcome: "cnt", MultiSplit: &MultiSplit{Axis: "dept"}}
	plans := RuleEngine{}.Plan(req, df)
	for _, p := range plans {
		if isBar(p.ChartSpec.ChartType) || p.ChartSpec.ChartType == Lollipop {
			assert.Equal(t, 10, p.ChartSpec.MaxCategories)
		}
	}
}
