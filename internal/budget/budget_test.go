package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sso312/querylens/internal/docstore"
)

func hashesOf(items []Item) map[string]bool {
	out := map[string]bool{}
	for _, it := range items {
		out[it.Doc.GetHash()] = true
	}
	return out
}

func TestDefaultQuotasShiftsTowardExamplesWhenScopeIsAll(t *testing.T) {
	narrow := DefaultQuotas(false)
	all := DefaultQuotas(true)

	assert.Greater(t, narrow.Schema, all.Schema)
	assert.Less(t, narrow.Example, all.Example)
	assert.Equal(t, narrow.Glossary, all.Glossary)
	assert.Equal(t, narrow.Template, all.Template)
}

func TestCountFallsBackToWhitespaceSplitWhenEncodingUnavailable(t *testing.T) {
	tok := &Tokenizer{}
	assert.Equal(t, 3, tok.Count("alpha beta gamma"))
	assert.Equal(t, 0, tok.Count(""))
}

func TestTotalTokensSumsEachItemsCost(t *testing.T) {
	tok := &Tokenizer{}
	items := []Item{
		{Doc: docstore.SchemaDoc{Envelope: docstore.Envelope{Hash: "a", Text: "one two"}}},
		{Doc: docstore.GlossaryDoc{Envelope: docstore.Envelope{Hash: "b", Text: "three four five"}}},
	}
	assert.Equal(t, 5, TotalTokens(items, tok))
}

func TestAllocateFillsPerRoleQuotaThenSkipsOverBudgetItem(t *testing.T) {
	tok := &Tokenizer{}
	quotas := Quotas{Schema: 0.5, Example: 0.3, Glossary: 0.12, Template: 0.08}

	items := []Item{
		{Doc: docstore.SchemaDoc{Envelope: docstore.Envelope{Hash: "s1", Text: "a b c"}}},
		{Doc: docstore.SchemaDoc{Envelope: docstore.Envelope{Hash: "s2", Text: "d e f g h i"}}},
		{Doc: docstore.ExampleDoc{Envelope: docstore.Envelope{Hash: "e1", Text: "x y"}}},
		{Doc: docstore.GlossaryDoc{Envelope: docstore.Envelope{Hash: "g1", Text: "g1"}}},
	}

	out := Allocate(items, 10, tok, quotas)
	picked := hashesOf(out)

	assert.True(t, picked["s1"])
	assert.True(t, picked["e1"])
	assert.True(t, picked["g1"])
	assert.False(t, picked["s2"], "s2 exceeds the schema role quota and must be skipped in pass 1")
}

func TestAllocateBackfillsLeftoverBudgetAcrossRolesInPass2(t *testing.T) {
	tok := &Tokenizer{}
	// Template quota rounds down to zero tokens at totalBudget=10, so the
	// template item can only be picked up in pass 2's leftover-budget fill.
	quotas := Quotas{Schema: 0.5, Example: 0.3, Glossary: 0.12, Template: 0.08}

	items := []Item{
		{Doc: docstore.SchemaDoc{Envelope: docstore.Envelope{Hash: "s1", Text: "a b c"}}},
		{Doc: docstore.ExampleDoc{Envelope: docstore.Envelope{Hash: "e1", Text: "x y"}}},
		{Doc: docstore.GlossaryDoc{Envelope: docstore.Envelope{Hash: "g1", Text: "g1"}}},
		{Doc: docstore.TemplateDoc{Envelope: docstore.Envelope{Hash: "t1", Text: "t1 t2 t3"}}},
	}

	out := Allocate(items, 10, tok, quotas)
	picked := hashesOf(out)

	assert.True(t, picked["t1"], "leftover budget after pass 1 must backfill the template item")
	assert.Equal(t, 9, TotalTokens(out, tok))
}

func TestAllocateNeverExceedsTotalBudget(t *testing.T) {
	tok := &Tokenizer{}
	quotas := DefaultQuotas(false)

	items := []Item{
		{Doc: docstore.SchemaDoc{Envelope: docstore.Envelope{Hash: "s1", Text: "one two three four five six seven"}}},
		{Doc: docstore.SchemaDoc{Envelope: docstore.Envelope{Hash: "s2", Text: "eight nine ten eleven twelve"}}},
		{Doc: docstore.ExampleDoc{Envelope: docstore.Envelope{Hash: "e1", Text: "thirteen fourteen"}}},
	}

	out := Allocate(items, 5, tok, quotas)
	assert.LessOrEqual(t, TotalTokens(out, tok), 5)
}
