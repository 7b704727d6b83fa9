package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sso312/querylens/internal/chart"
)

type visualizeRequest struct {
	UserQuery string           `json:"userQuery" binding:"required"`
	SQL       string           `json:"sql"`
	Rows      []map[string]any `json:"rows"`
}

type visualizeResponse struct {
	Plans []chart.ChartPlan `json:"plans"`
	Notes []string          `json:"notes,omitempty"`
}

// handleVisualize implements POST /visualize (spec §6): runs Core B over
// the executed rows, capping at VIS_MAX_ROWS before any inference work so a
// runaway result set can't blow up DataFrame schema derivation.
func (s *Server) handleVisualize(c *gin.Context) {
	var req visualizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	maxRows := 10000
	if s.deps.Config != nil && s.deps.Config.VisMaxRows > 0 {
		maxRows = s.deps.Config.VisMaxRows
	}
	rows := req.Rows
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}

	df := chart.InferDataFrame(rows)
	intent := chart.RuleIntent(req.UserQuery)
	chartReq := chart.InferRequest(req.UserQuery, intent, df)

	plans, notes := s.deps.Charts.PlanWithNotes(chartReq, df)
	c.JSON(http.StatusOK, visualizeResponse{Plans: plans, Notes: notes})
}
