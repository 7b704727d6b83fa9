package chart

import (
	"context"
	"regexp"
	"strings"

	"github.com/sso312/querylens/internal/llm"
)

// IntentExtractor resolves a Request.Intent via an LLM call with a
// deterministic rule-table fallback (spec §4.12 "Intent Extractor (LLM+rule
// fallback)"), mirroring the teacher's llm.Chat-or-degrade pattern used
// throughout Core A (clarifier, translator).
type IntentExtractor struct {
	Client llm.Client
	Model  string
}

var (
	trendWords       = regexp.MustCompile(`(?i)(추세|trend|경과|변화|시계열|시간에 따|over time)`)
	distributionWords = regexp.MustCompile(`(?i)(분포|distribution|히스토그램|histogram)`)
	comparisonWords  = regexp.MustCompile(`(?i)(비교|compare|막대|그래프로 나눠|나눠서)`)
	proportionWords  = regexp.MustCompile(`(?i)(비율|proportion|비중|파이|pie|점유율)`)
	correlationWords = regexp.MustCompile(`(?i)(상관|correlation|산점도|scatter)`)
)

// ExtractIntent classifies the question into a chart Intent. It tries the
// LLM first (when Client is configured) and falls back to the rule table on
// any error or empty response, never surfacing an LLM failure to the caller
// — consistent with spec §7's "infrastructure" degradation policy.
func (ie *IntentExtractor) ExtractIntent(ctx context.Context, question string) Intent {
	if ie != nil && ie.Client != nil {
		if got, ok := ie.extractViaLLM(ctx, question); ok {
			return got
		}
	}
	return RuleIntent(question)
}

func (ie *IntentExtractor) extractViaLLM(ctx context.Context, question string) (Intent, bool) {
	resp, err := ie.Client.Chat(ctx, []llm.Message{
		{Role: "system", Content: "Classify the chart intent of the user's analytics question. Respond with a single JSON object {\"intent\": one of trend|distribution|comparison|proportion|correlation|overview}."},
		{Role: "user", Content: question},
	}, ie.Model, 64, true)
	if err != nil || resp.Content == "" {
		return "", false
	}
	lc := strings.ToLower(resp.Content)
	for _, cand := range []Intent{IntentTrend, IntentDistribution, IntentComparison, IntentProportion, IntentCorrelation, IntentOverview} {
		if strings.Contains(lc, string(cand)) {
			return cand, true
		}
	}
	return "", false
}

// RuleIntent is the deterministic fallback: first matching keyword family
// wins, in the priority order trend > correlation > proportion > comparison
// > distribution, because trend/correlation phrasing is the most specific.
func RuleIntent(question string) Intent {
	switch {
	case trendWords.MatchString(question):
		return IntentTrend
	case correlationWords.MatchString(question):
		return IntentCorrelation
	case proportionWords.MatchString(question):
		return IntentProportion
	case comparisonWords.MatchString(question):
		return IntentComparison
	case distributionWords.MatchString(question):
		return IntentDistribution
	default:
		return IntentOverview
	}
}
