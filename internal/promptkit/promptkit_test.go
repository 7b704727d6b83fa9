package promptkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParsesAllDefaultTemplates(t *testing.T) {
	kit, err := New(Default)
	require.NoError(t, err)
	require.NotNil(t, kit)

	for name := range Default {
		_, err := kit.Render(name, map[string]any{})
		assert.NoError(t, err, "template %q should render against an empty data map", name)
	}
}

func TestNewReturnsErrorOnMalformedTemplate(t *testing.T) {
	_, err := New(map[string]string{"broken": `{{.Unclosed`})
	assert.Error(t, err)
}

func TestRenderSubstitutesEngineerFields(t *testing.T) {
	kit, err := New(Default)
	require.NoError(t, err)

	out, err := kit.Render("engineer", map[string]any{
		"DBType":   "oracle",
		"Question": "how many admissions?",
		"Context":  "ADMISSIONS(HADM_ID, ADMISSION_TYPE)",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "oracle")
	assert.Contains(t, out, "how many admissions?")
	assert.Contains(t, out, "ADMISSIONS(HADM_ID, ADMISSION_TYPE)")
}

func TestRenderOmitsOptionalSectionsWhenFieldsAreEmpty(t *testing.T) {
	kit, err := New(Default)
	require.NoError(t, err)

	out, err := kit.Render("engineer", map[string]any{
		"DBType":   "oracle",
		"Question": "q",
		"Context":  "ctx",
	})
	require.NoError(t, err)
	assert.NotContains(t, out, "Planner intent:")
	assert.NotContains(t, out, "Question (English):")
}

func TestRenderIncludesOptionalSectionsWhenFieldsArePresent(t *testing.T) {
	kit, err := New(Default)
	require.NoError(t, err)

	out, err := kit.Render("engineer", map[string]any{
		"DBType":        "oracle",
		"Question":      "q",
		"QuestionEn":    "q-en",
		"Context":       "ctx",
		"PlannerIntent": "count admissions by type",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Question (English): q-en")
	assert.Contains(t, out, "Planner intent: count admissions by type")
}

func TestRenderExpertListsKnownIssues(t *testing.T) {
	kit, err := New(Default)
	require.NoError(t, err)

	out, err := kit.Render("expert", map[string]any{
		"DBType":   "oracle",
		"Question": "q",
		"DraftSQL": "SELECT 1 FROM DUAL",
		"Context":  "ctx",
		"Issues":   []string{"missing admission type filter", "unhandled NULLs"},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "missing admission type filter")
	assert.Contains(t, out, "unhandled NULLs")
}

func TestRenderUnknownTemplateNameFails(t *testing.T) {
	kit, err := New(Default)
	require.NoError(t, err)

	_, err = kit.Render("does-not-exist", nil)
	assert.Error(t, err)
}
