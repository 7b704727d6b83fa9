package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sso312/querylens/internal/executor"
)

type oneshotRequest struct {
	Question string `json:"question" binding:"required"`
	UserName string `json:"userName"`
	UserRole string `json:"userRole"`
}

type oneshotResponse struct {
	Qid    string `json:"qid"`
	Result any    `json:"result"`
}

// handleQueryOneshot implements POST /query/oneshot (spec §6): runs the full
// Core A pipeline and hands back an opaque qid the caller can later replay
// through /query/run without re-drafting SQL.
func (s *Server) handleQueryOneshot(c *gin.Context) {
	var req oneshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.deps.Orchestrator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "orchestrator not configured"})
		return
	}

	userKey := executor.UserKey(req.UserName)
	scope := s.userScope(c, req.UserName)

	result, err := s.deps.Orchestrator.Run(c.Request.Context(), userKey, req.Question, nil, scope, nil)
	if err != nil {
		writeAppErr(c, err)
		return
	}

	qid := s.qids.Put(qidRecord{
		UserKey: userKey, Question: result.Question, SQL: result.Final.FinalSQL, UserScope: scope,
	})
	c.JSON(http.StatusOK, oneshotResponse{Qid: qid, Result: result})
}

type runRequest struct {
	Qid      string `json:"qid,omitempty"`
	SQL      string `json:"sql,omitempty"`
	UserAck  bool   `json:"userAck"`
	UserName string `json:"userName"`
	UserRole string `json:"userRole"`
}

// handleQueryRun implements POST /query/run (spec §6): policy + executor +
// repair only, against either a previously drafted qid or a raw sql string,
// gated on explicit user acknowledgement.
func (s *Server) handleQueryRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.UserAck {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userAck is required to execute SQL"})
		return
	}
	if s.deps.Orchestrator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "orchestrator not configured"})
		return
	}

	userKey := executor.UserKey(req.UserName)
	question := ""
	sql := req.SQL
	scope := s.userScope(c, req.UserName)

	if req.Qid != "" {
		rec, ok := s.qids.Get(req.Qid)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown qid"})
			return
		}
		userKey, question, sql, scope = rec.UserKey, rec.Question, rec.SQL, rec.UserScope
	}
	if sql == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "either qid or sql is required"})
		return
	}

	result, err := s.deps.Orchestrator.RunSQL(c.Request.Context(), userKey, question, sql, scope)
	if err != nil {
		writeAppErr(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// userScope resolves a user's table-scope whitelist from the settings
// store. A nil store or lookup error yields an empty (unrestricted) scope,
// matching spec §7's tolerant-degradation policy.
func (s *Server) userScope(c *gin.Context, userName string) []string {
	if s.deps.Settings == nil || userName == "" {
		return nil
	}
	profile, err := s.deps.Settings.Get(c.Request.Context(), executor.UserKey(userName))
	if err != nil {
		return nil
	}
	return profile.TableScope
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
