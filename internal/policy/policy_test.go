package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sso312/querylens/internal/apperr"
)

func TestEvaluateRejectsWriteKeyword(t *testing.T) {
	_, err := Evaluate("DELETE FROM ADMISSIONS WHERE SUBJECT_ID = 1", Options{})
	require.Error(t, err)
	assert.Equal(t, apperr.ClassPolicy, apperr.ClassOf(err))
}

func TestEvaluateIgnoresWriteKeywordInsideStringLiteral(t *testing.T) {
	d, err := Evaluate("SELECT * FROM ADMISSIONS WHERE DIAGNOSIS = 'DROP FOOT'", Options{})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestEvaluateRejectsNonSelect(t *testing.T) {
	_, err := Evaluate("EXPLAIN SELECT 1", Options{})
	require.Error(t, err)
}

func TestEvaluateJoinCountCap(t *testing.T) {
	sql := `SELECT * FROM A JOIN B ON A.ID=B.ID JOIN C ON B.ID=C.ID WHERE A.X=1`
	_, err := Evaluate(sql, Options{JoinCountCap: 1})
	require.Error(t, err)
	assert.Equal(t, apperr.ClassPolicy, apperr.ClassOf(err))

	d, err := Evaluate(sql, Options{JoinCountCap: 2})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestEvaluateTableScopeViolation(t *testing.T) {
	sql := `SELECT * FROM ADMISSIONS A JOIN LABEVENTS L ON A.ID=L.ID WHERE A.X=1`
	_, err := Evaluate(sql, Options{TableScope: []string{"ADMISSIONS"}})
	require.Error(t, err)

	d, err := Evaluate(sql, Options{TableScope: []string{"ADMISSIONS", "LABEVENTS"}})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestEvaluateTableScopeAllowsCTENames(t *testing.T) {
	sql := `WITH recent AS (SELECT * FROM ADMISSIONS WHERE X=1) SELECT * FROM recent WHERE Y=1`
	d, err := Evaluate(sql, Options{TableScope: []string{"ADMISSIONS"}})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestEvaluateTableScopeAllowsEveryCommaChainedCTEName(t *testing.T) {
	sql := `WITH recent AS (SELECT * FROM ADMISSIONS WHERE X=1), tagged AS (SELECT * FROM recent WHERE Y=1) SELECT * FROM tagged WHERE Z=1`
	d, err := Evaluate(sql, Options{TableScope: []string{"ADMISSIONS"}})
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestEvaluateWhereRequiredWithExemptions(t *testing.T) {
	cases := []struct {
		name         string
		sql          string
		question     string
		wantAllowed  bool
		wantReason   string
	}{
		{
			name:        "missing where rejected",
			sql:         "SELECT SUBJECT_ID FROM ADMISSIONS",
			wantAllowed: false,
		},
		{
			name:        "aggregate function exempt",
			sql:         "SELECT COUNT(*) FROM ADMISSIONS",
			wantAllowed: true,
			wantReason:  "aggregate_exempt",
		},
		{
			name:        "group by exempt",
			sql:         "SELECT GENDER, COUNT(*) FROM PATIENTS GROUP BY GENDER",
			wantAllowed: true,
			wantReason:  "aggregate_exempt",
		},
		{
			name:        "row-capped exempt",
			sql:         "SELECT * FROM ADMISSIONS FETCH FIRST 10 ROWS ONLY",
			wantAllowed: true,
			wantReason:  "row_cap_exempt",
		},
		{
			name:        "status flag projection without WHERE rejected",
			sql:         "SELECT HOSPITAL_EXPIRE_FLAG FROM ADMISSIONS",
			wantAllowed: false,
		},
		{
			name:        "status flag filter exempt",
			sql:         "SELECT * FROM ADMISSIONS WHERE HOSPITAL_EXPIRE_FLAG = 1",
			wantAllowed: true,
		},
		{
			name:        "aggregate question hint exempt",
			sql:         "SELECT SUBJECT_ID FROM ADMISSIONS",
			question:    "입원 환자가 몇 명이야?",
			wantAllowed: true,
			wantReason:  "question_hint_exempt",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := Evaluate(tc.sql, Options{Question: tc.question})
			if tc.wantAllowed {
				require.NoError(t, err)
				assert.True(t, d.Allowed)
				if tc.wantReason != "" {
					assert.Equal(t, tc.wantReason, d.Reason)
				}
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestEvaluateRejectsEmptySQL(t *testing.T) {
	_, err := Evaluate("   ", Options{})
	require.Error(t, err)
	assert.Equal(t, apperr.ClassValidation, apperr.ClassOf(err))
}

func TestEffectiveScopeEmptyScopeMeansAllTables(t *testing.T) {
	scope, isAll := EffectiveScope(nil, []string{"A", "B"})
	assert.Nil(t, scope)
	assert.True(t, isAll)
}

func TestEffectiveScopeBelowThreshold(t *testing.T) {
	full := []string{"A", "B", "C", "D", "E"}
	scope, isAll := EffectiveScope([]string{"A", "B"}, full)
	assert.Equal(t, []string{"A", "B"}, scope)
	assert.False(t, isAll)
}

func TestEffectiveScopeAtThresholdCountsAsAllTables(t *testing.T) {
	full := []string{"A", "B", "C", "D", "E"}
	scope, isAll := EffectiveScope([]string{"A", "B", "C", "D"}, full)
	assert.Equal(t, []string{"A", "B", "C", "D"}, scope)
	assert.True(t, isAll)
}

func TestStripCommentsAndLiterals(t *testing.T) {
	sql := "SELECT 1 -- DROP TABLE X\nFROM DUAL /* block DELETE FROM Y */ WHERE 'literal DROP' = 'x'"
	stripped := StripCommentsAndLiterals(sql)
	assert.NotContains(t, stripped, "DROP")
	assert.NotContains(t, stripped, "DELETE")
}
