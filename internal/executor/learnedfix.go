package executor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// LearnedFix records a repair that previously turned a failing query into a
// succeeding one, keyed by (failedSqlHash, errorSignature), per spec §4.12.
type LearnedFix struct {
	ID             string    `json:"id"`
	ErrorSignature string    `json:"errorSignature"`
	FailedSQLHash  string    `json:"failedSqlHash"`
	FixedSQL       string    `json:"fixedSql"`
	FixedSQLHash   string    `json:"fixedSqlHash"`
	SuccessCount   int       `json:"successCount"`
	HitCount       int       `json:"hitCount"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	LastUsedAt     time.Time `json:"lastUsedAt"`
	Notes          []string  `json:"notes,omitempty"`
}

func learnedFixKey(failedSQLHash, errorSignature string) string {
	return failedSQLHash + "::" + errorSignature
}

// LearnedFixStore is a small JSON-file-backed repository, atomic write
// (temp file + rename) guarded by a single mutex, bounded to maxEntries by
// evicting the least-recently-updated entry, per spec §4.12's "learned
// fixes persist across runs" requirement.
type LearnedFixStore struct {
	mu         sync.Mutex
	path       string
	maxEntries int
	byKey      map[string]*LearnedFix
}

func NewLearnedFixStore(path string, maxEntries int) (*LearnedFixStore, error) {
	if maxEntries <= 0 {
		maxEntries = 2000
	}
	s := &LearnedFixStore{path: path, maxEntries: maxEntries, byKey: make(map[string]*LearnedFix)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LearnedFixStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var fixes []*LearnedFix
	if err := json.Unmarshal(data, &fixes); err != nil {
		return err
	}
	for _, f := range fixes {
		s.byKey[learnedFixKey(f.FailedSQLHash, f.ErrorSignature)] = f
	}
	return nil
}

// Lookup returns a previously learned fix for the given failing SQL hash and
// error signature, if one exists, and bumps its hit/last-used bookkeeping.
func (s *LearnedFixStore) Lookup(failedSQLHash, errorSignature string) (LearnedFix, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.byKey[learnedFixKey(failedSQLHash, errorSignature)]
	if !ok {
		return LearnedFix{}, false
	}
	f.HitCount++
	f.LastUsedAt = time.Now()
	return *f, true
}

// Record upserts a successful repair. Repeated recordings of the same
// (failedSqlHash, errorSignature) bump SuccessCount rather than duplicating.
func (s *LearnedFixStore) Record(id, failedSQLHash, errorSignature, fixedSQL, fixedSQLHash string, note string) error {
	s.mu.Lock()
	key := learnedFixKey(failedSQLHash, errorSignature)
	now := time.Now()
	f, ok := s.byKey[key]
	if ok {
		f.FixedSQL = fixedSQL
		f.FixedSQLHash = fixedSQLHash
		f.SuccessCount++
		f.UpdatedAt = now
		f.LastUsedAt = now
		if note != "" {
			f.Notes = append(f.Notes, note)
		}
	} else {
		f = &LearnedFix{
			ID:             id,
			ErrorSignature: errorSignature,
			FailedSQLHash:  failedSQLHash,
			FixedSQL:       fixedSQL,
			FixedSQLHash:   fixedSQLHash,
			SuccessCount:   1,
			HitCount:       0,
			CreatedAt:      now,
			UpdatedAt:      now,
			LastUsedAt:     now,
		}
		if note != "" {
			f.Notes = []string{note}
		}
		s.byKey[key] = f
	}
	s.evictIfOverCapacity()
	s.mu.Unlock()
	return s.persist()
}

// evictIfOverCapacity drops the least-recently-updated entries once the
// store exceeds maxEntries. Caller must hold s.mu.
func (s *LearnedFixStore) evictIfOverCapacity() {
	if len(s.byKey) <= s.maxEntries {
		return
	}
	all := make([]*LearnedFix, 0, len(s.byKey))
	for _, f := range s.byKey {
		all = append(all, f)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.Before(all[j].UpdatedAt) })
	toDrop := len(all) - s.maxEntries
	for i := 0; i < toDrop; i++ {
		delete(s.byKey, learnedFixKey(all[i].FailedSQLHash, all[i].ErrorSignature))
	}
}

func (s *LearnedFixStore) persist() error {
	s.mu.Lock()
	all := make([]*LearnedFix, 0, len(s.byKey))
	for _, f := range s.byKey {
		all = append(all, f)
	}
	s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.Before(all[j].UpdatedAt) })

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".learnedfix-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, s.path)
}

// Len reports the number of stored fixes, mainly for diagnostics/tests.
func (s *LearnedFixStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byKey)
}
