// Package planner implements the conditional Planner Gate and LLM call from
// spec §4.6: the planner only runs when enough complexity gates fire, and
// when skipped it can still inject a deterministic anchor_age hint so
// downstream SQL generation binds to the right column family.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sso312/querylens/internal/config"
	"github.com/sso312/querylens/internal/llm"
	"github.com/sso312/querylens/internal/promptkit"
	"github.com/sso312/querylens/internal/risk"
)

// Intent is the PlannerIntent data model from spec §3.
type Intent struct {
	Cohort        string   `json:"cohort"`
	Metric        string   `json:"metric"`
	Time          string   `json:"time"`
	Grain         string   `json:"grain"`
	Comparison    string   `json:"comparison"`
	OutputShape   string   `json:"outputShape"`
	Filters       []string `json:"filters"`
	IntentSummary string   `json:"intentSummary"`
}

// Decision records whether the planner ran and why, surfaced in
// OrchestratorResult.plannerDecision.
type Decision struct {
	Ran        bool
	GateCount  int
	Reasons    []string
}

var (
	complexityRe = regexp.MustCompile(`(?i)연도별|월별|분기별|quartile|사분위|top\s*\d+|상위\s*\d+|최근\s*\d+\s*일|after\s+\d+\s*days?`)
	ageRe        = regexp.MustCompile(`(?i)연령|나이|\bage\b`)
	yearIntentRe = regexp.MustCompile(`(?i)연도|year|anchor_year`)
	groupingRe   = regexp.MustCompile(`(?i)별로|그룹|group\s*by|나눠서`)
)

// Gate evaluates the required-gate-count rule from spec §4.6.
func Gate(question string, riskResult risk.Result, cfg *config.Config) Decision {
	count := 0
	var reasons []string
	if complexityRe.MatchString(question) {
		count++
		reasons = append(reasons, "complexity_signal")
	}
	if riskResult.Complexity >= cfg.PlannerComplexityThreshold {
		count++
		reasons = append(reasons, "risk_complexity_threshold")
	}
	if len(strings.Fields(question)) >= cfg.PlannerMinQuestionTokens {
		count++
		reasons = append(reasons, "question_length")
	}

	switch cfg.PlannerActivationMode {
	case config.PlannerActivationOff:
		return Decision{Ran: false, GateCount: count, Reasons: reasons}
	case config.PlannerActivationAlways:
		return Decision{Ran: true, GateCount: count, Reasons: append(reasons, "activation_always")}
	default:
		return Decision{Ran: count >= cfg.PlannerRequiredGateCount, GateCount: count, Reasons: reasons}
	}
}

// SynthesizeSkippedIntent implements spec §4.6's "when skipped" hint: if the
// question shows age-without-year semantics AND explicit grouping intent,
// bind grain="age_group" so downstream generation prefers ANCHOR_AGE.
//
// Per spec §9's open question, this heuristic (grain only set when grouping
// intent is explicit) is brittle; it is implemented exactly as specified
// rather than generalized further, and the decision is recorded in
// DESIGN.md rather than silently expanded.
func SynthesizeSkippedIntent(question string) *Intent {
	if !ageRe.MatchString(question) || yearIntentRe.MatchString(question) {
		return nil
	}
	intent := &Intent{IntentSummary: "anchor_age_preferred"}
	if groupingRe.MatchString(question) {
		intent.Grain = "age_group"
	}
	return intent
}

type Planner struct {
	llm   llm.Client
	kit   *promptkit.Kit
	model string
}

func New(client llm.Client, kit *promptkit.Kit, model string) *Planner {
	return &Planner{llm: client, kit: kit, model: model}
}

type llmIntentEnvelope struct {
	Intent Intent `json:"intent"`
}

// Plan runs the LLM planner call per spec §6's strict-JSON schema.
func (p *Planner) Plan(ctx context.Context, question, context_ string) (Intent, error) {
	prompt, err := p.kit.Render("planner", map[string]any{"Question": question, "Context": context_})
	if err != nil {
		return Intent{}, fmt.Errorf("planner: render prompt: %w", err)
	}
	resp, err := p.llm.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, p.model, 768, true)
	if err != nil {
		return Intent{}, fmt.Errorf("planner: llm call: %w", err)
	}
	var env llmIntentEnvelope
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), &env); err != nil {
		return Intent{}, fmt.Errorf("planner: parse response: %w", err)
	}
	return env.Intent, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
