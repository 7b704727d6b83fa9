package httpapi

import (
	"sync"

	"github.com/google/uuid"
)

// qidRecord is what /query/oneshot hands back an opaque qid for: enough to
// re-run the same SQL through policy+executor+repair from /query/run
// without re-drafting it, per spec §6's two-call {oneshot, run} flow.
type qidRecord struct {
	UserKey    string
	Question   string
	SQL        string
	UserScope  []string
}

type qidStore struct {
	mu      sync.Mutex
	records map[string]qidRecord
}

func newQidStore() *qidStore {
	return &qidStore{records: make(map[string]qidRecord)}
}

func (s *qidStore) Put(rec qidRecord) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.records[id] = rec
	s.mu.Unlock()
	return id
}

func (s *qidStore) Get(id string) (qidRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec, ok
}
