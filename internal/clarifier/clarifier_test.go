package clarifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClarifyTriggersOnAmbiguousTerm(t *testing.T) {
	c := New(nil, nil, nil, "", false)
	res, err := c.Clarify(context.Background(), "고혈압 환자는 몇 명이야?", nil)
	require.NoError(t, err)
	assert.True(t, res.NeedClarification)
	assert.NotEmpty(t, res.Options)
}

func TestClarifyNotTriggeredWhenCriteriaAlreadyPresent(t *testing.T) {
	c := New(nil, nil, nil, "", false)
	res, err := c.Clarify(context.Background(), "ICD I10 기준 고혈압 환자는 몇 명이야?", nil)
	require.NoError(t, err)
	assert.False(t, res.NeedClarification)
}

func TestResolveSlotsRecordsAutofillAssumptions(t *testing.T) {
	c := New(nil, nil, nil, "", true)
	res, err := c.Clarify(context.Background(), "입원 환자 수는?", nil)
	require.NoError(t, err)
	assert.False(t, res.NeedClarification)
	assert.Len(t, res.Assumptions, 2)
	assert.Contains(t, res.Assumptions[0], "DEFAULT_SCOPE_AUTOFILL_ENABLED")
}

func TestResolveSlotsNoAssumptionsWhenAutofillDisabled(t *testing.T) {
	c := New(nil, nil, nil, "", false)
	res, err := c.Clarify(context.Background(), "입원 환자 수는?", nil)
	require.NoError(t, err)
	assert.Empty(t, res.Assumptions)
}

func TestResolveSlotsUsesHistorySlots(t *testing.T) {
	c := New(nil, nil, nil, "", false)
	history := []Turn{{Role: "user", Text: "기간: 2150-2160 / 대상: 고혈압 환자"}}
	res, err := c.Clarify(context.Background(), "환자 수는?", history)
	require.NoError(t, err)
	assert.Contains(t, res.RefinedQuestion, "2150-2160")
	assert.Contains(t, res.RefinedQuestion, "고혈압 환자")
}

func TestResolveSlotsFollowUpPrependsPreviousQuestion(t *testing.T) {
	c := New(nil, nil, nil, "", false)
	history := []Turn{{Role: "user", Text: "고혈압 환자는 몇 명이야?"}}
	res, err := c.Clarify(context.Background(), "그 조건에서 평균 나이는?", history)
	require.NoError(t, err)
	assert.Contains(t, res.RefinedQuestion, "[후속 질문]")
	assert.Contains(t, res.RefinedQuestion, "고혈압 환자는 몇 명이야?")
}
