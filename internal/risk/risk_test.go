package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySimpleQuestionIsReadWithZeroScore(t *testing.T) {
	got := Classify("입원 환자 수는?")
	assert.Equal(t, Result{Intent: IntentRead, Complexity: 0, Risk: 0}, got)
}

func TestClassifyWriteKeywordForcesRiskyIntent(t *testing.T) {
	got := Classify("Insert a new record into ADMISSIONS")
	assert.Equal(t, IntentRisky, got.Intent)
	assert.Equal(t, 5, got.Risk)
}

func TestClassifyDerivedMetricPlusStratifyAddsBonus(t *testing.T) {
	got := Classify("연도별 사망률 평균을 보여줘")
	assert.Equal(t, 2, got.Complexity)
	assert.Equal(t, 2, got.Risk)
	assert.Equal(t, IntentRead, got.Intent)
}

func TestClassifyHighComplexityBoostsRisk(t *testing.T) {
	got := Classify("icu 환자와 icd 진단을 join 해서 그리고 보여줘")
	assert.Equal(t, 3, got.Complexity)
	assert.Equal(t, 3, got.Risk)
	assert.Equal(t, IntentRead, got.Intent)
}

func TestClassifyBroadScopeSignalAddsComplexity(t *testing.T) {
	got := Classify("전체 환자 목록을 보여줘")
	assert.Equal(t, 1, got.Complexity)
	assert.Equal(t, 0, got.Risk)
}
