package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/sso312/querylens/internal/docstore"
)

// ICDMatch is one clinical term matched to its ICD prefixes.
type ICDMatch struct {
	Term        string
	ICDPrefixes []string
	Version     int // 9 or 10
	Text        string
}

// MatchDiagnosisProcedure implements spec §4.4's diagnosis/procedure ICD
// mapper: scans the term->ICD-prefix dictionary (diagnosis_map and
// procedure_map docs) for terms present in the question and produces one
// formatted doc per hit, inferring ICD_VERSION from whether the matched
// prefixes are alphabetic (ICD-10) or numeric (ICD-9).
func MatchDiagnosisProcedure(question string, diagnoses []docstore.DiagnosisMapDoc, procedures []docstore.ProcedureMapDoc) []ICDMatch {
	qLower := strings.ToLower(question)
	var out []ICDMatch
	for _, d := range diagnoses {
		if strings.Contains(qLower, strings.ToLower(d.Term)) {
			out = append(out, buildICDMatch(d.Term, d.ICDPrefixes))
		}
	}
	for _, p := range procedures {
		if strings.Contains(qLower, strings.ToLower(p.Term)) {
			out = append(out, buildICDMatch(p.Term, p.ICDPrefixes))
		}
	}
	return out
}

func buildICDMatch(term string, prefixes []string) ICDMatch {
	version := inferICDVersion(prefixes)
	quoted := make([]string, len(prefixes))
	for i, p := range prefixes {
		quoted[i] = p + "%"
	}
	text := fmt.Sprintf("%s -> ICD_CODE prefixes %s; use ICD_VERSION %d", term, strings.Join(quoted, ", "), version)
	return ICDMatch{Term: term, ICDPrefixes: prefixes, Version: version, Text: text}
}

// inferICDVersion returns 10 when prefixes are alphabetic (ICD-10 style,
// e.g. "I10"), 9 when numeric (ICD-9 style, e.g. "401").
func inferICDVersion(prefixes []string) int {
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		c := p[0]
		if c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' {
			return 10
		}
	}
	return 9
}

// DictionaryMatches runs the ICD mapper and the column-value matcher
// against the full diagnosis_map/procedure_map/column_value corpus in
// store, independent of whichever subset the scored BM25+dense pass kept.
// Both matchers scan a closed dictionary rather than rank candidates, so
// spec §4.4 expects them to see every row, not the top-K retrieval slice.
func DictionaryMatches(ctx context.Context, store docstore.Store, question string) ([]ICDMatch, []ColumnValueMatch, []Remap, error) {
	filter := docstore.Filter{Types: []docstore.DocType{
		docstore.TypeDiagnosisMap, docstore.TypeProcedureMap, docstore.TypeColumnValue,
	}}
	docs, err := store.ListDocuments(ctx, filter, 0)
	if err != nil {
		return nil, nil, nil, err
	}

	var diagnoses []docstore.DiagnosisMapDoc
	var procedures []docstore.ProcedureMapDoc
	var columnValues []docstore.ColumnValueDoc
	for _, d := range docs {
		switch v := d.(type) {
		case docstore.DiagnosisMapDoc:
			diagnoses = append(diagnoses, v)
		case docstore.ProcedureMapDoc:
			procedures = append(procedures, v)
		case docstore.ColumnValueDoc:
			columnValues = append(columnValues, v)
		}
	}

	icdMatches := MatchDiagnosisProcedure(question, diagnoses, procedures)
	cvMatches, remaps := MatchColumnValues(question, columnValues)
	return icdMatches, cvMatches, remaps, nil
}
