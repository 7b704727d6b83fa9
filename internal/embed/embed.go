// Package embed provides a default retrieval.Embedder so cmd/server has a
// working dense-vector path without a network embedding provider wired in.
// retrieval.Embedder is deliberately out-of-scope in spec §4.4 ("callers
// supply a concrete implementation around whatever embedding model they
// deploy"); this hashing embedder is that default, the same role the
// teacher's package gives a local stand-in before a real provider is
// configured. Swapping in a hosted embedding model means implementing
// retrieval.Embedder against that provider's client and passing it to
// retrieval.New instead.
package embed

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// Hashing is a deterministic bag-of-words embedder: each token is hashed
// into one of Dim buckets and the resulting vector L2-normalized. It has no
// semantic understanding, only lexical overlap, so BM25 carries most of the
// retrieval quality when Hashing is the configured Embedder. The retrieval
// package's fusion weights still give the dense score the larger share
// (Vec 0.50 in DomainWeights, 0.55 in DictionaryWeights).
type Hashing struct {
	Dim int
}

// NewHashing builds a Hashing embedder with the given vector dimension.
func NewHashing(dim int) *Hashing {
	if dim <= 0 {
		dim = 256
	}
	return &Hashing{Dim: dim}
}

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// Embed satisfies retrieval.Embedder.
func (h *Hashing) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.Dim)
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		idx := bucket(tok, h.Dim)
		vec[idx]++
	}
	normalize(vec)
	return vec, nil
}

func bucket(tok string, dim int) int {
	hsh := fnv.New32a()
	_, _ = hsh.Write([]byte(tok))
	return int(hsh.Sum32() % uint32(dim))
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}
