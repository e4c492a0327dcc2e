package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockStore is a mock implementation of Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Append(ctx context.Context, record *Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockStore) HasRecordFor(ctx context.Context, projectID string) (bool, error) {
	args := m.Called(ctx, projectID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) FindByProject(ctx context.Context, projectID string) (*Record, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Record), args.Error(1)
}

func (m *MockStore) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Record), args.Error(1)
}

func newLedgerRouter(store Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	logger := zap.NewNop()
	NewHandler(NewService(store, logger), logger).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestHandler_ListRecords(t *testing.T) {
	store := new(MockStore)
	store.On("List", mock.Anything, ListFilter{ProjectID: "p1", Limit: DefaultListLimit}).
		Return([]*Record{newTestRecord("p1", 1)}, nil)

	w := httptest.NewRecorder()
	newLedgerRouter(store).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ledger?project_id=p1", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Records []Record `json:"records"`
		Count   int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "p1", body.Records[0].ProjectID)
	store.AssertExpectations(t)
}

func TestHandler_ListRecords_ClampsLimit(t *testing.T) {
	store := new(MockStore)
	store.On("List", mock.Anything, ListFilter{Limit: MaxListLimit}).Return([]*Record{}, nil)

	w := httptest.NewRecorder()
	newLedgerRouter(store).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ledger?limit=50000", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	store.AssertExpectations(t)
}

func TestHandler_ListRecords_StoreError(t *testing.T) {
	store := new(MockStore)
	store.On("List", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	w := httptest.NewRecorder()
	newLedgerRouter(store).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ledger", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}

func TestHandler_ExportCSV(t *testing.T) {
	store := new(MockStore)
	store.On("List", mock.Anything, ListFilter{}).Return([]*Record{newTestRecord("p1", 1)}, nil)

	w := httptest.NewRecorder()
	newLedgerRouter(store).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ledger/export?format=csv", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")
	assert.True(t, strings.HasPrefix(w.Body.String(), "id,project_id,buyer_name"))
}

func TestHandler_ExportUnsupportedFormat(t *testing.T) {
	store := new(MockStore)

	w := httptest.NewRecorder()
	newLedgerRouter(store).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ledger/export?format=pdf", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	store.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}
