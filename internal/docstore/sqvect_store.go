package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/liliang-cn/sqvect/v2"
)

// SqvectStore is the default Store implementation named in spec §3.1: a
// local, swappable, SQLite-backed vector index so demo/test runs get real
// cosine nearest-neighbor search without an external vector database.
// Production deployments implement the same Store interface against
// whatever vector backend they actually run (pgvector, Pinecone, ...).
//
// The catalog of documents themselves (for ListDocuments/BM25) is kept in
// an in-memory index alongside the vector collection, since sqvect's job
// here is nearest-neighbor search, not general document listing.
type SqvectStore struct {
	mu    sync.RWMutex
	col   *sqvect.Collection
	byID  map[string]Doc
	ids   []string
}

// OpenSqvectStore opens (creating if absent) a sqvect collection at path
// with the given embedding dimension.
func OpenSqvectStore(path string, dim int) (*SqvectStore, error) {
	db, err := sqvect.Open(path)
	if err != nil {
		return nil, fmt.Errorf("docstore: open sqvect store: %w", err)
	}
	col, err := db.Collection("querylens_docs", sqvect.WithDimension(dim))
	if err != nil {
		return nil, fmt.Errorf("docstore: open collection: %w", err)
	}
	return &SqvectStore{col: col, byID: make(map[string]Doc)}, nil
}

// Upsert indexes (or re-indexes, by hash) one document's embedding plus a
// serialized copy of the typed payload as metadata, so a later VectorSearch
// hit can be decoded back into its concrete Doc.
func (s *SqvectStore) Upsert(ctx context.Context, doc Doc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := encodeRaw(doc)
	if err != nil {
		return err
	}
	meta := map[string]string{"type": string(doc.Type()), "payload": string(payload)}
	if err := s.col.Upsert(ctx, doc.GetHash(), doc.GetEmbedding(), meta); err != nil {
		return fmt.Errorf("docstore: sqvect upsert: %w", err)
	}
	if _, exists := s.byID[doc.GetHash()]; !exists {
		s.ids = append(s.ids, doc.GetHash())
	}
	s.byID[doc.GetHash()] = doc
	return nil
}

func (s *SqvectStore) VectorSearch(ctx context.Context, embedding []float32, k int, filter Filter) ([]ScoredDoc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Over-fetch from sqvect since the type/scope filter narrows after the
	// nearest-neighbor pass; sqvect's own relevance order is preserved.
	fetchK := k
	if len(filter.Types) > 0 || len(filter.TableScope) > 0 {
		fetchK = k * 4
		if fetchK < 50 {
			fetchK = 50
		}
	}
	results, err := s.col.Search(ctx, embedding, sqvect.WithTopK(fetchK))
	if err != nil {
		return nil, fmt.Errorf("docstore: sqvect search: %w", err)
	}

	out := make([]ScoredDoc, 0, k)
	for _, r := range results {
		doc, ok := s.byID[r.ID]
		if !ok {
			continue
		}
		if !filter.allows(doc) {
			continue
		}
		out = append(out, ScoredDoc{Doc: doc, Score: float64(r.Score)})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

func (s *SqvectStore) ListDocuments(_ context.Context, filter Filter, limit int) ([]Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Doc, 0, limit)
	for _, id := range s.ids {
		doc := s.byID[id]
		if !filter.allows(doc) {
			continue
		}
		out = append(out, doc)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *SqvectStore) Close() error { return s.col.Close() }

func encodeRaw(doc Doc) ([]byte, error) {
	wrapped := rawDocPayload{Type: doc.Type(), Data: doc}
	return json.Marshal(wrapped)
}

type rawDocPayload struct {
	Type DocType `json:"type"`
	Data any     `json:"data"`
}

// Decode turns a stored JSON payload back into its typed Doc using the same
// dispatch table LoadJSONLFile uses.
func Decode(payload []byte) (Doc, error) {
	var raw rawDoc
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	return decode(raw)
}
