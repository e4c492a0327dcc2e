package projects

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(catalog Gateway) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	logger := zap.NewNop()
	NewHandler(NewService(catalog, logger), logger).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestHandler_ListProjects(t *testing.T) {
	sold := newTestProject("p2")
	sold.Status = StatusSold
	router := newTestRouter(NewMemoryCatalog(newTestProject("p1"), sold))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/projects?status=Available", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "p1", body[0]["id"])
	assert.Equal(t, "Available", body[0]["status"])
}

func TestHandler_ListProjects_BadFilter(t *testing.T) {
	router := newTestRouter(NewMemoryCatalog())

	for _, url := range []string{"/api/v1/projects?status=Reserved", "/api/v1/projects?limit=-1", "/api/v1/projects?offset=x"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, url)
	}
}

func TestHandler_GetProject(t *testing.T) {
	router := newTestRouter(NewMemoryCatalog(newTestProject("p1")))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/projects/p1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"price_per_credit":"10"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/projects/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_GeoJSON(t *testing.T) {
	bad := newTestProject("bad")
	bad.Latitude = 123
	router := newTestRouter(NewMemoryCatalog(newTestProject("p1"), bad))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/projects.geojson", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/geo+json", w.Header().Get("Content-Type"))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			ID       string                 `json:"id"`
			Geometry map[string]interface{} `json:"geometry"`
			Props    map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "p1", fc.Features[0].ID)
	assert.Equal(t, "Point", fc.Features[0].Geometry["type"])
	assert.Equal(t, "Available", fc.Features[0].Props["status"])
}
