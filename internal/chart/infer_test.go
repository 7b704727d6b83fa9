package chart

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferDataFrameClassifiesIdentifierNumericAndDatetimeColumns(t *testing.T) {
	rows := []map[string]any{
		{"HADM_ID": float64(1), "ADMITTIME": "2150-01-02T00:00:00Z", "LACTATE": float64(2.1), "DEPT": "CARD"},
		{"HADM_ID": float64(2), "ADMITTIME": "2150-03-04T00:00:00Z", "LACTATE": float64(3.4), "DEPT": "NEURO"},
	}
	df := InferDataFrame(rows)

	byName := map[string]Column{}
	for _, c := range df.Columns {
		byName[c.Name] = c
	}

	assert.Equal(t, KindIdentifier, byName["HADM_ID"].Kind)
	assert.Equal(t, KindDatetime, byName["ADMITTIME"].Kind)
	assert.Equal(t, KindNumeric, byName["LACTATE"].Kind)
	assert.Equal(t, KindCategorical, byName["DEPT"].Kind)
	assert.Equal(t, 2, byName["DEPT"].NUnique)
}

func TestInferDataFrameEmptyRowsReturnsEmptyFrame(t *testing.T) {
	df := InferDataFrame(nil)
	assert.Empty(t, df.Columns)
}

func TestInferDataFrameMixedTypeColumnFallsBackToCategorical(t *testing.T) {
	rows := []map[string]any{
		{"VALUE": float64(1)},
		{"VALUE": "not-a-number"},
	}
	df := InferDataFrame(rows)
	assert.Equal(t, KindCategorical, df.Columns[0].Kind)
}

func TestInferRequestPicksFirstNumericOutcomeAndCategoricalGroup(t *testing.T) {
	df := DataFrame{Columns: []Column{
		{Name: "HADM_ID", Kind: KindIdentifier, NUnique: 100},
		{Name: "DEPT", Kind: KindCategorical, NUnique: 5},
		{Name: "LACTATE", Kind: KindNumeric, NUnique: 80},
	}}
	req := InferRequest("부서별 젖산 수치", IntentComparison, df)

	assert.Equal(t, "LACTATE", req.PrimaryOutcome)
	assert.Equal(t, "DEPT", req.GroupVar)
	assert.Empty(t, req.TimeVar)
}

func TestInferRequestFallsBackToElapsedTimeColumnWhenNoDatetime(t *testing.T) {
	df := DataFrame{Columns: []Column{
		{Name: "ELAPSED_DAYS", Kind: KindNumeric, NUnique: 30},
		{Name: "LACTATE", Kind: KindNumeric, NUnique: 80},
	}}
	req := InferRequest("ICU 추세", IntentTrend, df)
	assert.Equal(t, "ELAPSED_DAYS", req.TimeVar)
}

func TestInferRequestSetsICUAndAdmitContextFlags(t *testing.T) {
	df := DataFrame{Columns: []Column{{Name: "LACTATE", Kind: KindNumeric, NUnique: 10}}}
	req := InferRequest("ICU 입원 환자의 추세", IntentTrend, df)
	assert.True(t, req.ContextFlags.ICUContext)
	assert.True(t, req.ContextFlags.AdmitContext)
}
