package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sso312/querylens/internal/settings"
)

func (s *Server) handlePoolStatus(c *gin.Context) {
	if s.deps.Pool == nil {
		c.JSON(http.StatusOK, gin.H{"entries": []any{}})
		return
	}
	statuses := s.deps.Pool.Statuses()
	out := make([]gin.H, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, gin.H{"userKey": st.UserKey, "state": st.State, "ageMs": st.Age.Milliseconds()})
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}

func (s *Server) handleSettingsGet(c *gin.Context) {
	if s.deps.Settings == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "settings store not configured"})
		return
	}
	profile, err := s.deps.Settings.Get(c.Request.Context(), c.Param("userKey"))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) handleSettingsPost(c *gin.Context) {
	if s.deps.Settings == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "settings store not configured"})
		return
	}
	var profile settings.Profile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	profile.UserID = c.Param("userKey")
	if err := s.deps.Settings.Put(c.Request.Context(), profile); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, profile)
}

type metadataSyncRequest struct {
	Kinds []string `json:"kinds,omitempty"`
}

// handleMetadataSync implements POST /admin/metadata/sync: forces the
// MetadataCache to reload its registered kinds (schema catalog, join graph,
// rule files, ...) on the next Get, per spec §9's MetadataCache design note.
func (s *Server) handleMetadataSync(c *gin.Context) {
	if s.deps.Cache == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metadata cache not configured"})
		return
	}
	var req metadataSyncRequest
	_ = c.ShouldBindJSON(&req)
	if len(req.Kinds) == 0 {
		req.Kinds = defaultCacheKinds
	}
	for _, kind := range req.Kinds {
		s.deps.Cache.Invalidate(kind)
	}
	c.JSON(http.StatusOK, gin.H{"invalidated": req.Kinds})
}

// defaultCacheKinds is the set cmd/server registers with the MetadataCache
// at startup; kept here so a sync call with no body still invalidates
// everything the server actually tracks.
var defaultCacheKinds = []string{"schema_catalog", "join_graph", "postprocess_rules", "chart_rules", "doc_corpus"}

// handleRAGReindex implements POST /admin/rag/reindex: rebuilds the
// retrieval document store from its backing metadata files.
func (s *Server) handleRAGReindex(c *gin.Context) {
	if s.deps.Reindex == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reindex not configured"})
		return
	}
	n, err := s.deps.Reindex(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"indexed": n})
}
