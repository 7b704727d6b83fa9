// Package budget implements the Context Budgeter from spec §4.5: it caps a
// ranked retrieval set to a token budget T by per-role quota (schemas >
// examples > glossary > templates), filling quotas first and leftovers by
// priority second. Token estimation follows the teacher's pipeline.go
// pattern (cl100k_base via pkoukk/tiktoken-go with a tokenizer-unavailable
// fallback) re-enabled per spec §9's "Token accounting" supplement, where
// the teacher's own counter sat disabled behind a TODO.
package budget

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/sso312/querylens/internal/docstore"
)

// Tokenizer counts tokens in text; Count falls back to whitespace splitting
// when the cl100k encoding could not be loaded (matching the teacher's
// tokenizer-may-be-nil handling in pipeline.go).
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

func NewTokenizer() *Tokenizer {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &Tokenizer{}
	}
	return &Tokenizer{enc: enc}
}

func (t *Tokenizer) Count(text string) int {
	if t.enc == nil {
		return len(strings.Fields(text))
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Quotas is the default per-role token allocation, expressed as a fraction
// of the total budget. When the effective scope is "all tables" (>=80% of
// the catalog), schema share drops and example share rises, per spec §4.5.
type Quotas struct {
	Schema, Example, Glossary, Template float64
}

func DefaultQuotas(scopeIsEffectivelyAll bool) Quotas {
	if scopeIsEffectivelyAll {
		return Quotas{Schema: 0.50, Example: 0.30, Glossary: 0.12, Template: 0.08}
	}
	return Quotas{Schema: 0.55, Example: 0.25, Glossary: 0.12, Template: 0.08}
}

// Item is one ranked retrieval candidate entering the budgeter.
type Item struct {
	Doc   docstore.Doc
	Score float64
}

func roleOf(d docstore.Doc) string {
	switch d.Type() {
	case docstore.TypeSchema, docstore.TypeTableProfile:
		return "schema"
	case docstore.TypeExample:
		return "example"
	case docstore.TypeGlossary, docstore.TypeDiagnosisMap, docstore.TypeProcedureMap, docstore.TypeLabelIntent, docstore.TypeColumnValue:
		return "glossary"
	case docstore.TypeTemplate:
		return "template"
	default:
		return "glossary"
	}
}

// Allocate fills the budget in two passes: quota-respecting fill per role,
// then leftover budget by global priority (highest score first) regardless
// of role, matching spec §4.5's two-pass description.
func Allocate(items []Item, totalBudget int, tok *Tokenizer, quotas Quotas) []Item {
	roleBudget := map[string]int{
		"schema":   int(float64(totalBudget) * quotas.Schema),
		"example":  int(float64(totalBudget) * quotas.Example),
		"glossary": int(float64(totalBudget) * quotas.Glossary),
		"template": int(float64(totalBudget) * quotas.Template),
	}
	roleUsed := map[string]int{}

	picked := make(map[int]bool, len(items))
	var out []Item
	used := 0

	// Pass 1: quota-respecting fill, highest score first within role.
	byRole := map[string][]int{}
	for i, it := range items {
		r := roleOf(it.Doc)
		byRole[r] = append(byRole[r], i)
	}
	for role, idxs := range byRole {
		for _, i := range idxs {
			cost := tok.Count(items[i].Doc.GetText())
			if roleUsed[role]+cost > roleBudget[role] {
				continue
			}
			roleUsed[role] += cost
			used += cost
			picked[i] = true
			out = append(out, items[i])
		}
	}

	// Pass 2: leftover budget by global priority (score order as received).
	for i, it := range items {
		if picked[i] {
			continue
		}
		cost := tok.Count(it.Doc.GetText())
		if used+cost > totalBudget {
			continue
		}
		used += cost
		picked[i] = true
		out = append(out, it)
	}

	return out
}

// TotalTokens sums the estimated token cost of a set of items.
func TotalTokens(items []Item, tok *Tokenizer) int {
	total := 0
	for _, it := range items {
		total += tok.Count(it.Doc.GetText())
	}
	return total
}
