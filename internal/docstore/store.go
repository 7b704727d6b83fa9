package docstore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// Store is the out-of-scope "vector store" contract from spec §4.4, named
// exactly as the spec's VectorSearch/ListDocuments pair.
type Store interface {
	VectorSearch(ctx context.Context, embedding []float32, k int, filter Filter) ([]ScoredDoc, error)
	ListDocuments(ctx context.Context, filter Filter, limit int) ([]Doc, error)
}

// MemStore is an in-memory Store backing local/test runs and the fallback
// path when the configured vector store is unreachable (spec §7,
// "Infrastructure" -> retriever falls back to local JSONL corpora).
type MemStore struct {
	docs []Doc
}

func NewMemStore() *MemStore { return &MemStore{} }

func (m *MemStore) Add(docs ...Doc) { m.docs = append(m.docs, docs...) }

func (m *MemStore) ListDocuments(_ context.Context, filter Filter, limit int) ([]Doc, error) {
	out := make([]Doc, 0, limit)
	for _, d := range m.docs {
		if !filter.allows(d) {
			continue
		}
		out = append(out, d)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemStore) VectorSearch(_ context.Context, embedding []float32, k int, filter Filter) ([]ScoredDoc, error) {
	scored := make([]ScoredDoc, 0, len(m.docs))
	for _, d := range m.docs {
		if !filter.allows(d) {
			continue
		}
		if len(d.GetEmbedding()) == 0 || len(embedding) == 0 {
			continue
		}
		scored = append(scored, ScoredDoc{Doc: d, Score: cosine(embedding, d.GetEmbedding())})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// rawDoc is the on-disk JSONL envelope: a type tag plus the typed payload,
// matching spec §6's "Metadata JSONL files per doc type, one object per
// line" file format.
type rawDoc struct {
	Type DocType         `json:"type"`
	Data json.RawMessage `json:"data"`
}

// LoadJSONLDir reads every *.jsonl file under dir and decodes each line into
// its concrete Doc type, grounded in the teacher's plain-JSON file-based
// context loader (inference/pipeline.go's loadContext). One file per doc
// type is the expected but not required layout; any file may mix types
// since the type tag is per-line.
func LoadJSONLDir(dir string) ([]Doc, error) {
	var out []Doc
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		docs, err := LoadJSONLFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("docstore: load %s: %w", e.Name(), err)
		}
		out = append(out, docs...)
	}
	return out, nil
}

func LoadJSONLFile(path string) ([]Doc, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Doc
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw rawDoc
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		doc, err := decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		out = append(out, doc)
	}
	return out, sc.Err()
}

func decode(raw rawDoc) (Doc, error) {
	switch raw.Type {
	case TypeSchema:
		var d SchemaDoc
		return d, json.Unmarshal(raw.Data, &d)
	case TypeExample:
		var d ExampleDoc
		return d, json.Unmarshal(raw.Data, &d)
	case TypeTemplate:
		var d TemplateDoc
		return d, json.Unmarshal(raw.Data, &d)
	case TypeGlossary:
		var d GlossaryDoc
		return d, json.Unmarshal(raw.Data, &d)
	case TypeDiagnosisMap:
		var d DiagnosisMapDoc
		return d, json.Unmarshal(raw.Data, &d)
	case TypeProcedureMap:
		var d ProcedureMapDoc
		return d, json.Unmarshal(raw.Data, &d)
	case TypeLabelIntent:
		var d LabelIntentDoc
		return d, json.Unmarshal(raw.Data, &d)
	case TypeColumnValue:
		var d ColumnValueDoc
		return d, json.Unmarshal(raw.Data, &d)
	case TypeTableProfile:
		var d TableProfileDoc
		return d, json.Unmarshal(raw.Data, &d)
	default:
		return nil, fmt.Errorf("unknown doc type %q", raw.Type)
	}
}
