package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sso312/querylens/internal/chart"
	"github.com/sso312/querylens/internal/config"
)

func testDeps() Deps {
	return Deps{Config: config.Default(), Charts: chart.RuleEngine{}}
}

func TestHealth(t *testing.T) {
	r := NewRouter(testDeps())
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestVisualizeEndpointReturnsRankedPlans(t *testing.T) {
	r := NewRouter(testDeps())

	payload := visualizeRequest{
		UserQuery: "부서별 막대그래프",
		Rows: []map[string]any{
			{"dept": "ICU", "cnt": 10},
			{"dept": "ER", "cnt": 7},
			{"dept": "WARD", "cnt": 3},
		},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/visualize", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp visualizeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Plans)
}

func TestDashboardCreateListGet(t *testing.T) {
	r := NewRouter(testDeps())

	createBody, _ := json.Marshal(dashboardCreateRequest{Name: "ICU mortality", Question: "q", SQL: "SELECT 1 FROM DUAL"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/dashboard", bytes.NewReader(createBody))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created DashboardEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	w2 := httptest.NewRecorder()
	req2, _ := http.NewRequest(http.MethodGet, "/dashboard/"+created.ID, nil)
	r.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusOK, w2.Code)

	w3 := httptest.NewRecorder()
	req3, _ := http.NewRequest(http.MethodGet, "/dashboard", nil)
	r.ServeHTTP(w3, req3)
	assert.Equal(t, http.StatusOK, w3.Code)
}

func TestAuditLogRecordedAndDeletable(t *testing.T) {
	r := NewRouter(testDeps())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w2 := httptest.NewRecorder()
	req2, _ := http.NewRequest(http.MethodGet, "/audit/logs", nil)
	r.ServeHTTP(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)

	var listResp struct {
		Logs []AuditEntry `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &listResp))
	require.NotEmpty(t, listResp.Logs)

	id := listResp.Logs[0].ID
	w3 := httptest.NewRecorder()
	req3, _ := http.NewRequest(http.MethodDelete, "/audit/logs/"+id, nil)
	r.ServeHTTP(w3, req3)
	assert.Equal(t, http.StatusNoContent, w3.Code)
}

func TestQueryRunRequiresAck(t *testing.T) {
	r := NewRouter(testDeps())

	body, _ := json.Marshal(runRequest{SQL: "SELECT 1 FROM DUAL", UserAck: false})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/query/run", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
