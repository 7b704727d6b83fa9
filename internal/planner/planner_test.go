package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sso312/querylens/internal/config"
	"github.com/sso312/querylens/internal/llm"
	"github.com/sso312/querylens/internal/promptkit"
	"github.com/sso312/querylens/internal/risk"
)

func complexOnlyConfig() *config.Config {
	return &config.Config{
		PlannerActivationMode:      config.PlannerActivationComplexOnly,
		PlannerComplexityThreshold: 3,
		PlannerMinQuestionTokens:   12,
		PlannerRequiredGateCount:   2,
	}
}

func TestGateComplexOnlyStaysClosedBelowRequiredGateCount(t *testing.T) {
	d := Gate("연도별 사망률을 보여줘", risk.Result{Complexity: 0}, complexOnlyConfig())
	assert.False(t, d.Ran)
	assert.Equal(t, 1, d.GateCount)
	assert.Contains(t, d.Reasons, "complexity_signal")
}

func TestGateComplexOnlyOpensWhenTwoSignalsFire(t *testing.T) {
	d := Gate("연도별 사망률을 보여줘", risk.Result{Complexity: 5}, complexOnlyConfig())
	assert.True(t, d.Ran)
	assert.Equal(t, 2, d.GateCount)
	assert.Contains(t, d.Reasons, "complexity_signal")
	assert.Contains(t, d.Reasons, "risk_complexity_threshold")
}

func TestGateCountsLongQuestionAsASignal(t *testing.T) {
	q := "please show me the total number of admissions recorded across all hospital departments last year"
	d := Gate(q, risk.Result{Complexity: 0}, complexOnlyConfig())
	assert.Equal(t, 1, d.GateCount)
	assert.Contains(t, d.Reasons, "question_length")
	assert.False(t, d.Ran)
}

func TestGateOffModeNeverRuns(t *testing.T) {
	cfg := complexOnlyConfig()
	cfg.PlannerActivationMode = config.PlannerActivationOff
	d := Gate("연도별 사망률을 보여줘", risk.Result{Complexity: 5}, cfg)
	assert.False(t, d.Ran)
}

func TestGateAlwaysModeAlwaysRuns(t *testing.T) {
	cfg := complexOnlyConfig()
	cfg.PlannerActivationMode = config.PlannerActivationAlways
	d := Gate("입원 환자 수는?", risk.Result{Complexity: 0}, cfg)
	assert.True(t, d.Ran)
	assert.Contains(t, d.Reasons, "activation_always")
}

func TestSynthesizeSkippedIntentReturnsNilWithoutAgeSignal(t *testing.T) {
	assert.Nil(t, SynthesizeSkippedIntent("입원 환자 수는?"))
}

func TestSynthesizeSkippedIntentReturnsNilWhenYearIntentPresent(t *testing.T) {
	assert.Nil(t, SynthesizeSkippedIntent("연도별 나이 분포를 보여줘"))
}

func TestSynthesizeSkippedIntentSetsAnchorAgeWithoutGrouping(t *testing.T) {
	intent := SynthesizeSkippedIntent("나이가 몇 살인가요?")
	require.NotNil(t, intent)
	assert.Equal(t, "anchor_age_preferred", intent.IntentSummary)
	assert.Empty(t, intent.Grain)
}

func TestSynthesizeSkippedIntentSetsAgeGroupGrainWhenGroupingPresent(t *testing.T) {
	intent := SynthesizeSkippedIntent("나이별로 그룹화해서 보여줘")
	require.NotNil(t, intent)
	assert.Equal(t, "age_group", intent.Grain)
}

type fakeLLM struct {
	content string
	err     error
}

func (f fakeLLM) Chat(context.Context, []llm.Message, string, int, bool) (llm.Response, error) {
	return llm.Response{Content: f.content}, f.err
}

func TestPlanParsesIntentEnvelope(t *testing.T) {
	kit, err := promptkit.New(promptkit.Default)
	require.NoError(t, err)

	p := New(fakeLLM{content: `{"intent": {"cohort": "emergency admissions", "metric": "count", "intentSummary": "count by type"}}`}, kit, "model")

	intent, err := p.Plan(context.Background(), "how many emergency admissions?", "ADMISSIONS(HADM_ID)")
	require.NoError(t, err)
	assert.Equal(t, "emergency admissions", intent.Cohort)
	assert.Equal(t, "count", intent.Metric)
	assert.Equal(t, "count by type", intent.IntentSummary)
}

func TestPlanReturnsErrorOnMalformedResponse(t *testing.T) {
	kit, err := promptkit.New(promptkit.Default)
	require.NoError(t, err)

	p := New(fakeLLM{content: "not json"}, kit, "model")
	_, err = p.Plan(context.Background(), "q", "ctx")
	assert.Error(t, err)
}

func TestPlanReturnsErrorOnLLMFailure(t *testing.T) {
	kit, err := promptkit.New(promptkit.Default)
	require.NoError(t, err)

	p := New(fakeLLM{err: assertErr{}}, kit, "model")
	_, err = p.Plan(context.Background(), "q", "ctx")
	assert.Error(t, err)
}

type assertErr struct{}

func (assertErr) Error() string { return "llm unavailable" }
