package chart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sso312/querylens/internal/llm"
)

func TestRuleIntentPriorityTrendBeatsComparison(t *testing.T) {
	assert.Equal(t, IntentTrend, RuleIntent("시간에 따른 비교 추세"))
}

func TestRuleIntentDistribution(t *testing.T) {
	assert.Equal(t, IntentDistribution, RuleIntent("나이 분포를 보여줘"))
}

func TestRuleIntentProportion(t *testing.T) {
	assert.Equal(t, IntentProportion, RuleIntent("사망 비율 점유율"))
}

func TestRuleIntentDefaultsToOverview(t *testing.T) {
	assert.Equal(t, IntentOverview, RuleIntent("환자 목록을 보여줘"))
}

type fakeIntentLLM struct {
	content string
	err     error
}

func (f fakeIntentLLM) Chat(context.Context, []llm.Message, string, int, bool) (llm.Response, error) {
	return llm.Response{Content: f.content}, f.err
}

func TestExtractIntentUsesLLMResponseWhenItNamesAKnownIntent(t *testing.T) {
	ie := &IntentExtractor{Client: fakeIntentLLM{content: `{"intent": "correlation"}`}}
	got := ie.ExtractIntent(context.Background(), "아무 질문")
	assert.Equal(t, IntentCorrelation, got)
}

func TestExtractIntentFallsBackToRuleTableOnLLMError(t *testing.T) {
	ie := &IntentExtractor{Client: fakeIntentLLM{err: assertErr{}}}
	got := ie.ExtractIntent(context.Background(), "나이 분포를 보여줘")
	assert.Equal(t, IntentDistribution, got)
}

func TestExtractIntentFallsBackWhenLLMNamesNoKnownIntent(t *testing.T) {
	ie := &IntentExtractor{Client: fakeIntentLLM{content: "I'm not sure"}}
	got := ie.ExtractIntent(context.Background(), "사망 비율 점유율")
	assert.Equal(t, IntentProportion, got)
}

func TestExtractIntentWithNilClientUsesRuleTable(t *testing.T) {
	ie := &IntentExtractor{}
	got := ie.ExtractIntent(context.Background(), "시간에 따른 추세")
	assert.Equal(t, IntentTrend, got)
}

type assertErr struct{}

func (assertErr) Error() string { return "llm unavailable" }
