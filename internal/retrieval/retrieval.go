// Package retrieval implements the hybrid BM25+dense Retriever from spec
// §4.4, grounded in the teacher's inference/schema_linker.go (which already
// ranks candidate tables by an LLM-scored relevance pass) generalized into a
// typed-weight fusion over a typed document store, plus the column-value,
// ICD, and label-intent matchers described in the same section.
package retrieval

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/sso312/querylens/internal/docstore"
)

// Mode selects the ranking strategy named in spec §4.4.
type Mode string

const (
	ModeBM25ThenRerank Mode = "bm25_then_rerank"
	ModeHybridLegacy    Mode = "hybrid_legacy"
)

// Weights are the typed fusion weights from spec §4.4 step 4.
type Weights struct{ Vec, BM25, Overlap float64 }

var (
	DomainWeights     = Weights{Vec: 0.50, BM25: 0.40, Overlap: 0.10}
	DictionaryWeights = Weights{Vec: 0.55, BM25: 0.35, Overlap: 0.10}
)

func weightsFor(t docstore.DocType) Weights {
	switch t {
	case docstore.TypeGlossary, docstore.TypeDiagnosisMap, docstore.TypeProcedureMap, docstore.TypeColumnValue:
		return DictionaryWeights
	default:
		return DomainWeights
	}
}

// Embedder turns text into the fixed-dimension embedding the vector store
// expects. It is out of scope (consumed, not implemented); callers supply a
// concrete implementation around whatever embedding model they deploy.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options configures one retrieval call.
type Options struct {
	Mode              Mode
	TopK              int
	BM25MaxDocs       int
	DenseCandidates   int
	TableScope        []string
	ScopeIsAllTables  bool
}

// Retriever composes BM25 + dense search over a Store, applying the
// age-semantic bias, intent suppression, service/admission-type hint
// injection, and table-scope filtering from spec §4.4.
type Retriever struct {
	store    docstore.Store
	embedder Embedder
}

func New(store docstore.Store, embedder Embedder) *Retriever {
	return &Retriever{store: store, embedder: embedder}
}

// Store exposes the backing document store so callers can run the
// dictionary-scan matchers (MatchDiagnosisProcedure, MatchColumnValues)
// directly against the full corpus, independent of the scored hit list.
func (r *Retriever) Store() docstore.Store {
	return r.store
}

// Result is one ranked retrieval hit with its fused score and any injected
// annotation explaining why it was added or suppressed.
type Result struct {
	Doc   docstore.Doc
	Score float64
	Note  string
}

// Retrieve runs the full per-type pipeline described in spec §4.4 steps
// 1-8 for the given document types.
func (r *Retriever) Retrieve(ctx context.Context, question string, types []docstore.DocType, opts Options) ([]Result, error) {
	if opts.TopK <= 0 {
		opts.TopK = 12
	}
	if opts.BM25MaxDocs <= 0 {
		opts.BM25MaxDocs = 1000
	}
	if opts.DenseCandidates <= 0 {
		opts.DenseCandidates = 40
	}

	filter := docstore.Filter{Types: types}
	if !opts.ScopeIsAllTables {
		filter.TableScope = opts.TableScope
	}

	bm25MaxDocs := opts.BM25MaxDocs
	for _, t := range types {
		if t == docstore.TypeColumnValue && bm25MaxDocs < 2500 {
			bm25MaxDocs = 2500
		}
	}

	candidates, err := r.store.ListDocuments(ctx, filter, bm25MaxDocs)
	if err != nil {
		return nil, err
	}

	qTokens := Tokenize(question)
	corpus := make([][]string, len(candidates))
	for i, d := range candidates {
		corpus[i] = Tokenize(d.GetText())
	}
	idx := NewBM25(corpus)
	bm25Raw := idx.ScoreAll(qTokens)
	bm25Norm := NormalizeScores(bm25Raw)

	var dense []docstore.ScoredDoc
	if r.embedder != nil {
		qVec, embErr := r.embedder.Embed(ctx, question)
		if embErr == nil && len(qVec) > 0 {
			dense, _ = r.store.VectorSearch(ctx, qVec, opts.DenseCandidates, filter)
		}
	}
	denseByHash := map[string]float64{}
	for _, sd := range dense {
		denseByHash[sd.Doc.GetHash()] = sd.Score
	}

	allowed := map[string]bool{}
	if opts.Mode == ModeBM25ThenRerank || opts.Mode == "" {
		for _, d := range candidates {
			allowed[d.GetHash()] = true // BM25 pool
		}
		for h := range denseByHash {
			allowed[h] = true
		}
	}

	denseRaw := make([]float64, len(candidates))
	for i, d := range candidates {
		denseRaw[i] = denseByHash[d.GetHash()]
	}
	denseNorm := NormalizeScores(denseRaw)

	results := make([]Result, 0, len(candidates))
	for i, d := range candidates {
		if opts.Mode == ModeBM25ThenRerank && !allowed[d.GetHash()] {
			continue
		}
		w := weightsFor(d.Type())
		overlap := LexicalOverlap(qTokens, corpus[i])
		score := w.Vec*denseNorm[i] + w.BM25*bm25Norm[i] + w.Overlap*overlap
		results = append(results, Result{Doc: d, Score: score})
	}

	applyAgeSemanticBias(question, results)
	results = applyIntentSuppression(question, results)
	results = injectServiceAdmissionHint(question, results, candidates)

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results, nil
}

var ageRe = regexp.MustCompile(`(?i)연령|나이|\bage\b`)
var yearIntentRe = regexp.MustCompile(`(?i)연도|연도별|year|anchor_year`)

// applyAgeSemanticBias implements spec §4.4 step 5: when the question
// mentions age without year intent, suppress ANCHOR_YEAR_GROUP-only docs and
// boost ANCHOR_AGE-only docs, in place.
func applyAgeSemanticBias(question string, results []Result) {
	if !ageRe.MatchString(question) || yearIntentRe.MatchString(question) {
		return
	}
	for i := range results {
		text := strings.ToUpper(results[i].Doc.GetText())
		hasYear := strings.Contains(text, "ANCHOR_YEAR_GROUP")
		hasAge := strings.Contains(text, "ANCHOR_AGE")
		switch {
		case hasYear && !hasAge:
			results[i].Score *= 0.55
			results[i].Note = "age_semantic_suppressed_year_group"
		case hasAge && !hasYear:
			results[i].Score *= 1.15
			results[i].Note = "age_semantic_boosted_anchor_age"
		}
	}
}

var lactateFirstICURe = regexp.MustCompile(`(?i)lactate|첫\s*icu|first\s*icu|첫번째\s*icu`)
var hospitalExpireAsMortalityRe = regexp.MustCompile(`(?i)HOSPITAL_EXPIRE_FLAG`)

// applyIntentSuppression implements spec §4.4 step 6: drop lactate/first-
// ICU/HOSPITAL_EXPIRE_FLAG-as-mortality example/template/glossary docs
// unless the question explicitly targets them.
func applyIntentSuppression(question string, results []Result) []Result {
	explicit := lactateFirstICURe.MatchString(question)
	out := make([]Result, 0, len(results))
	for _, res := range results {
		if !explicit {
			switch res.Doc.Type() {
			case docstore.TypeExample, docstore.TypeTemplate, docstore.TypeGlossary:
				text := res.Doc.GetText()
				if lactateFirstICURe.MatchString(text) ||
					(hospitalExpireAsMortalityRe.MatchString(text) &&
						strings.Contains(strings.ToLower(text), "mortality")) {
					continue
				}
			}
		}
		out = append(out, res)
	}
	return out
}

var serviceAdmissionIntentRe = regexp.MustCompile(`(?i)입원\s*경로|진료과|service|admission\s*type|입원\s*유형`)

// injectServiceAdmissionHint implements spec §4.4 step 7: when the question
// shows service/admission-type intent and no value-catalog column_value hit
// matched, inject a synthetic hint doc pointing at the right column.
func injectServiceAdmissionHint(question string, results []Result, candidates []docstore.Doc) []Result {
	if !serviceAdmissionIntentRe.MatchString(question) {
		return results
	}
	for _, res := range results {
		if res.Doc.Type() == docstore.TypeColumnValue {
			return results // a real value-catalog match already exists
		}
	}
	target := "ADMISSIONS.ADMISSION_TYPE"
	if strings.Contains(strings.ToLower(question), "진료과") || strings.Contains(strings.ToLower(question), "service") {
		target = "SERVICES.CURR_SERVICE"
	}
	hint := docstore.GlossaryDoc{
		Envelope: docstore.Envelope{Hash: "synthetic:" + target, Text: "Use " + target + " to answer service/admission-type questions."},
		Term:     target,
	}
	return append([]Result{{Doc: hint, Score: 1.0, Note: "synthetic_service_admission_hint"}}, results...)
}
