package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sso312/querylens/internal/chart"
)

// DashboardEntry is a saved question/SQL/chart-plan combination, the unit
// GET/POST /dashboard/... persists per spec §6.
type DashboardEntry struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"createdAt"`
	Name      string          `json:"name"`
	Question  string          `json:"question"`
	SQL       string          `json:"sql"`
	ChartPlan *chart.ChartPlan `json:"chartPlan,omitempty"`
}

type dashboardStore struct {
	mu      sync.Mutex
	entries map[string]DashboardEntry
	order   []string
}

func newDashboardStore() *dashboardStore {
	return &dashboardStore{entries: make(map[string]DashboardEntry)}
}

func (s *dashboardStore) Create(e DashboardEntry) DashboardEntry {
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now()
	s.mu.Lock()
	s.entries[e.ID] = e
	s.order = append(s.order, e.ID)
	s.mu.Unlock()
	return e
}

func (s *dashboardStore) List() []DashboardEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DashboardEntry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id])
	}
	return out
}

func (s *dashboardStore) Get(id string) (DashboardEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok
}

type dashboardCreateRequest struct {
	Name      string          `json:"name" binding:"required"`
	Question  string          `json:"question"`
	SQL       string          `json:"sql"`
	ChartPlan *chart.ChartPlan `json:"chartPlan,omitempty"`
}

func (s *Server) handleDashboardList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"dashboards": s.boards.List()})
}

func (s *Server) handleDashboardCreate(c *gin.Context) {
	var req dashboardCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entry := s.boards.Create(DashboardEntry{
		Name: req.Name, Question: req.Question, SQL: req.SQL, ChartPlan: req.ChartPlan,
	})
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) handleDashboardGet(c *gin.Context) {
	entry, ok := s.boards.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "dashboard not found"})
		return
	}
	c.JSON(http.StatusOK, entry)
}
