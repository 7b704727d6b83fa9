// Package clarifier implements spec §4.1: detect definition ambiguity in
// medical terms before any SQL is drafted, using a small deterministic rule
// table as the trigger (an LLM signal alone never fires clarification) plus
// slot memory scanned from prior turns, grounded in the teacher's own
// preference for a rule table gating an LLM call (c.f. risk classifier's
// signal list, reused the same way here).
package clarifier

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sso312/querylens/internal/llm"
	"github.com/sso312/querylens/internal/promptkit"
)

// Turn is one prior conversation turn.
type Turn struct {
	Role string
	Text string
}

// Result is the Clarifier's output shape from spec §4.1/§6.
type Result struct {
	NeedClarification     bool
	Reason                string
	ClarificationQuestion string
	Options               []string
	ExampleInputs         []string
	RefinedQuestion       string

	// Assumptions records anything the clarifier silently filled in so the
	// caller can surface it in OrchestratorResult.assumptions (spec §9 open
	// question: DEFAULT_SCOPE_AUTOFILL_ENABLED must be auditable).
	Assumptions []string
}

// DefinitionRule is one row of the ambiguity trigger table: a term that is
// ambiguous unless the question already carries one of its disambiguating
// criteria keywords.
type DefinitionRule struct {
	Term                string
	Criteria            []string
	ClarificationPrompt  string
	Options              []string
}

// DefaultRules seeds the rule table with the hypertension example named
// explicitly in spec §8 scenario 2.
var DefaultRules = []DefinitionRule{
	{
		Term:                "고혈압",
		Criteria:            []string{"icd", "i10", "i15", "약물", "항고혈압제", "병력", "comorbidity"},
		ClarificationPrompt: "고혈압의 정의 기준을 명확히 해주세요.",
		Options: []string{
			"진단 코드 기반 (I10-I15)",
			"항고혈압제 복용 기준",
			"입실 전 병력(comorbidity)",
			"고혈압 위기 제외",
		},
	},
}

type Clarifier struct {
	rules []DefinitionRule
	llm   llm.Client
	kit   *promptkit.Kit
	model string

	defaultScopeAutofill bool
}

func New(rules []DefinitionRule, client llm.Client, kit *promptkit.Kit, model string, defaultScopeAutofill bool) *Clarifier {
	if rules == nil {
		rules = DefaultRules
	}
	return &Clarifier{rules: rules, llm: client, kit: kit, model: model, defaultScopeAutofill: defaultScopeAutofill}
}

var asciiWordRe = regexp.MustCompile(`[A-Za-z]{2,}`)

// Clarify evaluates whether question needs clarification, per spec §4.1.
func (c *Clarifier) Clarify(ctx context.Context, question string, history []Turn) (Result, error) {
	isKorean := containsHangul(question)

	rule, matched := c.matchAmbiguousTerm(question)
	if !matched {
		return c.resolveSlots(question, history, isKorean)
	}

	res := Result{
		NeedClarification:     true,
		Reason:                fmt.Sprintf("definition ambiguity: %s", rule.Term),
		ClarificationQuestion: rule.ClarificationPrompt,
		Options:               rule.Options,
		ExampleInputs:         []string{question},
	}

	if c.llm != nil && c.kit != nil {
		prompt, err := c.kit.Render("clarifier", map[string]any{"Question": question, "History": renderHistory(history)})
		if err == nil {
			resp, callErr := c.llm.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, c.model, 512, true)
			if callErr == nil && !hasDefinitionSignal(resp.Content) {
				// LLM output lacking a definition signal is downgraded per
				// spec §4.1: the rule-table trigger still wins but we do not
				// let a vague LLM answer override the prepared question.
			}
		}
	}

	if isKorean {
		res.ClarificationQuestion = stripASCIIWords(res.ClarificationQuestion)
	}
	return res, nil
}

func (c *Clarifier) matchAmbiguousTerm(question string) (DefinitionRule, bool) {
	for _, r := range c.rules {
		if !strings.Contains(question, r.Term) {
			continue
		}
		satisfied := false
		qLower := strings.ToLower(question)
		for _, crit := range r.Criteria {
			if strings.Contains(qLower, strings.ToLower(crit)) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return r, true
		}
	}
	return DefinitionRule{}, false
}

func hasDefinitionSignal(s string) bool {
	low := strings.ToLower(s)
	return strings.Contains(low, "정의") || strings.Contains(low, "기준") || strings.Contains(low, "definition")
}

var (
	periodRe     = regexp.MustCompile(`(?i)기간[:：]\s*([^/\n]+)`)
	cohortRe     = regexp.MustCompile(`(?i)대상[:：]\s*([^/\n]+)`)
	comparisonRe = regexp.MustCompile(`(?i)비교[:：]\s*([^/\n]+)`)
	metricRe     = regexp.MustCompile(`(?i)지표[:：]\s*([^/\n]+)`)

	followUpRe = regexp.MustCompile(`(?i)그\s*조건|then\b|what about`)
)

// resolveSlots implements the slot-memory and follow-up handling from spec
// §4.1: scans prior turns for period/cohort/comparison/metric answers and,
// once satisfied, composes a refinedQuestion; also prepends the previous
// question under a [후속 질문] tag on follow-up cues.
func (c *Clarifier) resolveSlots(question string, history []Turn, isKorean bool) (Result, error) {
	slots := map[string]string{}
	for _, t := range history {
		if m := periodRe.FindStringSubmatch(t.Text); m != nil {
			slots["period"] = strings.TrimSpace(m[1])
		}
		if m := cohortRe.FindStringSubmatch(t.Text); m != nil {
			slots["cohort"] = strings.TrimSpace(m[1])
		}
		if m := comparisonRe.FindStringSubmatch(t.Text); m != nil {
			slots["comparison"] = strings.TrimSpace(m[1])
		}
		if m := metricRe.FindStringSubmatch(t.Text); m != nil {
			slots["metric"] = strings.TrimSpace(m[1])
		}
	}

	refined := question
	var assumptions []string
	if c.defaultScopeAutofill {
		if slots["period"] == "" {
			slots["period"] = "전체 기간"
			assumptions = append(assumptions, "autofilled period=전체 기간 (DEFAULT_SCOPE_AUTOFILL_ENABLED)")
		}
		if slots["cohort"] == "" {
			slots["cohort"] = "전체 환자"
			assumptions = append(assumptions, "autofilled cohort=전체 환자 (DEFAULT_SCOPE_AUTOFILL_ENABLED)")
		}
	}
	if slots["period"] != "" || slots["cohort"] != "" || slots["metric"] != "" {
		var parts []string
		if slots["period"] != "" {
			parts = append(parts, "기간: "+slots["period"])
		}
		if slots["cohort"] != "" {
			parts = append(parts, "대상: "+slots["cohort"])
		}
		if slots["metric"] != "" {
			parts = append(parts, "지표: "+slots["metric"])
		}
		if len(parts) > 0 {
			refined = fmt.Sprintf("%s (%s)", question, strings.Join(parts, " / "))
		}
	}

	if followUpRe.MatchString(question) && len(history) > 0 {
		prev := history[len(history)-1].Text
		refined = fmt.Sprintf("[후속 질문] %s\n%s", prev, refined)
	}

	return Result{NeedClarification: false, RefinedQuestion: refined, Assumptions: assumptions}, nil
}

var hangulRe = regexp.MustCompile(`\p{Hangul}`)

func containsHangul(s string) bool { return hangulRe.MatchString(s) }

func stripASCIIWords(s string) string {
	return strings.TrimSpace(asciiWordRe.ReplaceAllString(s, ""))
}

func renderHistory(turns []Turn) string {
	var sb strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Text)
	}
	return sb.String()
}
