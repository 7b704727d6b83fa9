package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sso312/querylens/internal/docstore"
)

func TestMatchDiagnosisProcedureInfersICDVersion(t *testing.T) {
	diagnoses := []docstore.DiagnosisMapDoc{
		{Envelope: docstore.Envelope{Hash: "d1"}, Term: "고혈압", ICDPrefixes: []string{"I10", "I11"}},
	}
	procedures := []docstore.ProcedureMapDoc{
		{Envelope: docstore.Envelope{Hash: "p1"}, Term: "투석", ICDPrefixes: []string{"39.95"}},
	}

	matches := MatchDiagnosisProcedure("고혈압 환자 중 투석을 받은 사람", diagnoses, procedures)
	require.Len(t, matches, 2)

	var diag, proc ICDMatch
	for _, m := range matches {
		if m.Term == "고혈압" {
			diag = m
		} else {
			proc = m
		}
	}
	assert.Equal(t, 10, diag.Version)
	assert.Equal(t, 9, proc.Version)
	assert.Contains(t, diag.Text, "I10%")
}

func TestMatchDiagnosisProcedureNoHit(t *testing.T) {
	diagnoses := []docstore.DiagnosisMapDoc{
		{Envelope: docstore.Envelope{Hash: "d1"}, Term: "당뇨", ICDPrefixes: []string{"E10"}},
	}
	matches := MatchDiagnosisProcedure("고혈압 환자", diagnoses, nil)
	assert.Empty(t, matches)
}

func TestDictionaryMatchesCombinesICDAndColumnValue(t *testing.T) {
	store := docstore.NewMemStore()
	store.Add(
		docstore.DiagnosisMapDoc{Envelope: docstore.Envelope{Hash: "d1", Text: "고혈압"}, Term: "고혈압", ICDPrefixes: []string{"I10"}},
		docstore.ColumnValueDoc{
			Envelope:    docstore.Envelope{Hash: "cv1", Text: "services.prev_service"},
			Table:       "SERVICES",
			Column:      "PREV_SERVICE",
			Value:       "MED",
			Description: "이전 진료과",
		},
		docstore.SchemaDoc{Envelope: docstore.Envelope{Hash: "s1", Text: "ADMISSIONS"}, Table: "ADMISSIONS"},
	)

	icdMatches, cvMatches, remaps, err := DictionaryMatches(context.Background(), store, "고혈압 환자의 현재 진료과는 SERVICES.PREV_SERVICE 기준")
	require.NoError(t, err)
	require.Len(t, icdMatches, 1)
	assert.Equal(t, "고혈압", icdMatches[0].Term)
	require.Len(t, cvMatches, 1)
	require.Len(t, remaps, 1)
	assert.Equal(t, Remap{From: "SERVICES.PREV_SERVICE", To: "SERVICES.CURR_SERVICE"}, remaps[0])
}

func TestDictionaryMatchesIgnoresUnrelatedDocTypes(t *testing.T) {
	store := docstore.NewMemStore()
	store.Add(docstore.SchemaDoc{Envelope: docstore.Envelope{Hash: "s1"}, Table: "ADMISSIONS"})

	icdMatches, cvMatches, remaps, err := DictionaryMatches(context.Background(), store, "아무 질문")
	require.NoError(t, err)
	assert.Empty(t, icdMatches)
	assert.Empty(t, cvMatches)
	assert.Empty(t, remaps)
}
