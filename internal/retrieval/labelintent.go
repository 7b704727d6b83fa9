package retrieval

import (
	"strings"

	"github.com/sso312/querylens/internal/docstore"
)

// LabelIntentMatch is one clinical concept matched via D_ITEMS.LABEL anchor
// terms, scored proportional to how many anchor/required-with terms hit.
type LabelIntentMatch struct {
	Doc   docstore.LabelIntentDoc
	Score int
}

// MatchLabelIntent implements spec §4.4's label-intent matcher: for
// procedure-like concepts identified via D_ITEMS.LABEL, match anchor terms
// and required-with-anchor terms against the question.
func MatchLabelIntent(question string, docs []docstore.LabelIntentDoc) []LabelIntentMatch {
	qLower := strings.ToLower(question)
	var out []LabelIntentMatch
	for _, d := range docs {
		score := 0
		anchorHit := false
		for _, term := range d.AnchorTerms {
			if term != "" && strings.Contains(qLower, strings.ToLower(term)) {
				score += 10
				anchorHit = true
			}
		}
		if !anchorHit {
			continue
		}
		for _, term := range d.RequiredWith {
			if term != "" && strings.Contains(qLower, strings.ToLower(term)) {
				score += 5
			}
		}
		out = append(out, LabelIntentMatch{Doc: d, Score: score})
	}
	return out
}
