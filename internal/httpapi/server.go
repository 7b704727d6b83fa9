// Package httpapi implements the gin-based HTTP surface from spec §6,
// wiring internal/orchestrator (Core A) and internal/chart (Core B) behind
// the endpoint list named there. Each request gets its own request_id
// (github.com/google/uuid) and is bounded by apiRequestTimeoutSec request-
// timeout middleware, matching spec §5's concurrency model.
package httpapi

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sso312/querylens/internal/cache"
	"github.com/sso312/querylens/internal/chart"
	"github.com/sso312/querylens/internal/config"
	"github.com/sso312/querylens/internal/executor"
	"github.com/sso312/querylens/internal/logging"
	"github.com/sso312/querylens/internal/orchestrator"
	"github.com/sso312/querylens/internal/settings"
)

// ReindexFunc rebuilds the retrieval document store from its backing
// source (JSONL metadata dir, schema catalog, ...), returning the count of
// documents indexed. Supplied by cmd/server so httpapi stays decoupled from
// any one store implementation.
type ReindexFunc func(ctx context.Context) (int, error)

// Deps bundles every collaborator the HTTP surface needs. Fields may be nil
// in a partially-wired demo deployment; handlers degrade per spec §7's
// Infrastructure fallback policy rather than panicking.
type Deps struct {
	Config       *config.Config
	Orchestrator *orchestrator.Orchestrator
	Charts       chart.RuleEngine
	Pool         *executor.Pool
	Settings     settings.Writer
	Cache        *cache.MetadataCache
	Events       *logging.EventLogger
	Reindex      ReindexFunc
}

// Server owns the gin engine plus the in-memory stores (qid results, audit
// log, dashboards) that back the admin/audit/dashboard endpoints.
type Server struct {
	deps    Deps
	qids    *qidStore
	audit   *auditStore
	boards  *dashboardStore
	engine  *gin.Engine
}

// NewRouter builds the full gin.Engine for the endpoint list named in spec
// §6.
func NewRouter(deps Deps) *gin.Engine {
	s := &Server{
		deps:   deps,
		qids:   newQidStore(),
		audit:  newAuditStore(),
		boards: newDashboardStore(),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	var apiTimeout time.Duration
	if deps.Config != nil {
		apiTimeout = deps.Config.APIRequestTimeout()
	}
	r.Use(timeoutMiddleware(apiTimeout))
	r.Use(s.auditMiddleware())

	r.GET("/health", s.handleHealth)

	r.POST("/query/oneshot", s.handleQueryOneshot)
	r.POST("/query/run", s.handleQueryRun)

	r.POST("/visualize", s.handleVisualize)

	r.GET("/admin/oracle/pool/status", s.handlePoolStatus)
	r.GET("/admin/settings/:userKey", s.handleSettingsGet)
	r.POST("/admin/settings/:userKey", s.handleSettingsPost)
	r.POST("/admin/metadata/sync", s.handleMetadataSync)
	r.POST("/admin/rag/reindex", s.handleRAGReindex)

	r.GET("/audit/logs", s.handleAuditList)
	r.DELETE("/audit/logs/:id", s.handleAuditDelete)

	r.GET("/dashboard", s.handleDashboardList)
	r.POST("/dashboard", s.handleDashboardCreate)
	r.GET("/dashboard/:id", s.handleDashboardGet)

	s.engine = r
	return r
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-Id")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("request_id", rid)
		c.Writer.Header().Set("X-Request-Id", rid)
		c.Next()
	}
}

// timeoutMiddleware enforces spec §5's apiRequestTimeoutSec cancellation:
// the handler's context is canceled after d, and a handler that hasn't
// already written a response by then gets a 504.
func timeoutMiddleware(d time.Duration) gin.HandlerFunc {
	if d <= 0 {
		d = 190 * time.Second
	}
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		go func() {
			defer close(done)
			c.Next()
		}()

		select {
		case <-done:
		case <-ctx.Done():
			if !c.Writer.Written() {
				c.AbortWithStatusJSON(504, gin.H{"error": "request timed out", "errorClass": "CLIENT_TIMEOUT"})
			}
		}
	}
}

func requestID(c *gin.Context) string {
	if v, ok := c.Get("request_id"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
