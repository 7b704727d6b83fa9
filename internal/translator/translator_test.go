package translator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sso312/querylens/internal/llm"
)

type fakeLLM struct {
	content string
	err     error
}

func (f fakeLLM) Chat(context.Context, []llm.Message, string, int, bool) (llm.Response, error) {
	return llm.Response{Content: f.content}, f.err
}

func TestTranslateReturnsQuestionUnmodifiedWhenNoHangul(t *testing.T) {
	tr := New(nil, "")
	out, err := tr.Translate(context.Background(), "how many admissions?")
	require.NoError(t, err)
	assert.Equal(t, "how many admissions?", out)
}

func TestTranslateFallsThroughWhenClientNil(t *testing.T) {
	tr := New(nil, "")
	out, err := tr.Translate(context.Background(), "응급 입원 환자는 몇 명이야?")
	require.NoError(t, err)
	assert.Equal(t, "응급 입원 환자는 몇 명이야?", out)
}

func TestTranslateFallsThroughOnLLMError(t *testing.T) {
	tr := New(fakeLLM{err: assertErr{}}, "model")
	out, err := tr.Translate(context.Background(), "응급 입원 환자는 몇 명이야?")
	require.NoError(t, err)
	assert.Equal(t, "응급 입원 환자는 몇 명이야?", out)
}

func TestTranslateAppendsMissingAdmissionTypeMarker(t *testing.T) {
	tr := New(fakeLLM{content: "How many patients were admitted?"}, "model")
	out, err := tr.Translate(context.Background(), "응급 입원 환자는 몇 명이야?")
	require.NoError(t, err)
	assert.Contains(t, out, "[EMERGENCY]")
}

func TestTranslateCorrectsWrongSynonym(t *testing.T) {
	tr := New(fakeLLM{content: "How many patients had a SCHEDULED admission?"}, "model")
	out, err := tr.Translate(context.Background(), "예약 입원 환자는 몇 명이야?")
	require.NoError(t, err)
	assert.Contains(t, out, "ELECTIVE")
	assert.NotContains(t, out, "SCHEDULED")
}

func TestTranslateDoesNotDuplicateMarkerWhenAlreadyCorrect(t *testing.T) {
	tr := New(fakeLLM{content: "How many EMERGENCY admissions were there?"}, "model")
	out, err := tr.Translate(context.Background(), "응급 입원 환자는 몇 명이야?")
	require.NoError(t, err)
	assert.Equal(t, 1, countOccurrences(out, "EMERGENCY"))
}

type assertErr struct{}

func (assertErr) Error() string { return "llm unavailable" }

func countOccurrences(s, substr string) int {
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			count++
			i += len(substr) - 1
		}
	}
	return count
}
