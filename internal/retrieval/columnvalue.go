package retrieval

import (
	"regexp"
	"strings"

	"github.com/sso312/querylens/internal/docstore"
)

// ColumnValueMatch is one scored hit from the column-value dictionary.
type ColumnValueMatch struct {
	Doc              docstore.ColumnValueDoc
	Score            int
	StructuralMatch  bool
	ValueMatch       bool
}

// MatchColumnValues implements spec §4.4's column-value matcher: scores a
// table.(table,column,value,description) dictionary against the question,
// requiring at least one structural or value match before a doc is emitted.
//
// SERVICES.PREV_SERVICE -> CURR_SERVICE remapping (spec §9 open question) is
// preserved: when the question's intent looks like a restriction on current
// service rather than history, a PREV_SERVICE dictionary hit is rewritten to
// CURR_SERVICE and the rewrite is surfaced in the returned []Remap so
// postprocess can record it in metadata instead of applying it silently.
type Remap struct {
	From, To string
}

func MatchColumnValues(question string, dict []docstore.ColumnValueDoc) ([]ColumnValueMatch, []Remap) {
	qNorm := Normalize(question)
	qTokens := strings.Fields(qNorm)
	qLower := strings.ToLower(question)

	var out []ColumnValueMatch
	var remaps []Remap
	for _, d := range dict {
		score := 0
		structural := false
		valueMatch := false

		tableCol := strings.ToLower(d.Table + "." + d.Column)
		if strings.Contains(qLower, tableCol) {
			score += 28
			structural = true
		}
		if d.Value != "" && strings.Contains(qLower, strings.ToLower(d.Value)) {
			score += 28
			valueMatch = true
		}

		normValue := Normalize(d.Value)
		normDesc := Normalize(d.Description)
		for _, tok := range qTokens {
			if tok == "" {
				continue
			}
			if strings.Contains(normValue, tok) || strings.Contains(normDesc, tok) {
				score += 4
				valueMatch = true
			}
		}

		if !structural && !valueMatch {
			continue
		}

		if d.Table == "SERVICES" && d.Column == "PREV_SERVICE" && looksLikeCurrentServiceRestriction(question) {
			remaps = append(remaps, Remap{From: "SERVICES.PREV_SERVICE", To: "SERVICES.CURR_SERVICE"})
			d.Column = "CURR_SERVICE"
		}

		out = append(out, ColumnValueMatch{Doc: d, Score: score, StructuralMatch: structural, ValueMatch: valueMatch})
	}
	return out, remaps
}

var currentServiceRestrictionRe = regexp.MustCompile(`(?i)현재\s*진료과|지금\s*진료과|current\s*service|현\s*진료과`)

func looksLikeCurrentServiceRestriction(question string) bool {
	return currentServiceRestrictionRe.MatchString(question)
}
