package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditEntry is one completed-request record backing GET/DELETE
// /audit/logs, distinct from the append-only NDJSON events log (spec §6
// "Events log") which records per-stage pipeline events rather than
// per-request summaries.
type AuditEntry struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	RequestID  string    `json:"requestId"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	DurationMs int64     `json:"durationMs"`
	UserName   string    `json:"userName,omitempty"`
}

// auditStore is an in-memory, insertion-ordered request log. A production
// deployment would back this with the same Mongo/file store as settings;
// for the demo scope an in-memory store is sufficient since the NDJSON
// events log already carries the durable audit trail.
type auditStore struct {
	mu      sync.Mutex
	entries []AuditEntry
	byID    map[string]int
}

func newAuditStore() *auditStore {
	return &auditStore{byID: make(map[string]int)}
}

func (s *auditStore) Append(e AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[e.ID] = len(s.entries)
	s.entries = append(s.entries, e)
}

func (s *auditStore) List(limit int) []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]AuditEntry, 0, limit)
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.entries[i])
	}
	return out
}

func (s *auditStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[id]
	if !ok {
		return false
	}
	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	delete(s.byID, id)
	for id2, i := range s.byID {
		if i > idx {
			s.byID[id2] = i - 1
		}
	}
	return true
}

// auditMiddleware records every request's outcome after it completes, and
// mirrors it to the NDJSON events log when one is configured.
func (s *Server) auditMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := AuditEntry{
			ID:         uuid.NewString(),
			Time:       start,
			RequestID:  requestID(c),
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			Status:     c.Writer.Status(),
			DurationMs: time.Since(start).Milliseconds(),
			UserName:   c.GetHeader("X-User-Name"),
		}
		s.audit.Append(entry)
		if s.deps.Events != nil {
			s.deps.Events.Info("request", map[string]any{
				"requestId": entry.RequestID, "method": entry.Method, "path": entry.Path,
				"status": entry.Status, "durationMs": entry.DurationMs,
			})
		}
	}
}

func (s *Server) handleAuditList(c *gin.Context) {
	limit := 100
	c.JSON(http.StatusOK, gin.H{"logs": s.audit.List(limit)})
}

func (s *Server) handleAuditDelete(c *gin.Context) {
	id := c.Param("id")
	if !s.audit.Delete(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "audit log not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
