package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(tokens *TokenManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(tokens).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func doGet(router http.Handler, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("s3cret", "aquanexus", time.Hour)

	token, expires, err := tm.Issue("ops@aquanexus.mx", RoleOperator)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := tm.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@aquanexus.mx", claims.Subject)
	assert.Equal(t, RoleOperator, claims.Role)
}

func TestTokenManager_Rejects(t *testing.T) {
	tm := NewTokenManager("s3cret", "aquanexus", time.Hour)

	other, _, err := NewTokenManager("other", "aquanexus", time.Hour).Issue("x", RoleOperator)
	require.NoError(t, err)
	_, err = tm.Parse(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, _, err := NewTokenManager("s3cret", "someone-else", time.Hour).Issue("x", RoleOperator)
	require.NoError(t, err)
	_, err = tm.Parse(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokenManager("s3cret", "aquanexus", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _, err := expired.Issue("x", RoleOperator)
	require.NoError(t, err)
	_, err = tm.Parse(old)
	assert.ErrorIs(t, err, ErrExpiredToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: RoleOperator}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tm.Parse(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireRole(t *testing.T) {
	tm := NewTokenManager("s3cret", "aquanexus", time.Hour)
	router := newAuthRouter(tm)

	assert.Equal(t, http.StatusUnauthorized, doGet(router, "").Code)
	assert.Equal(t, http.StatusUnauthorized, doGet(router, "garbage").Code)

	viewer, _, err := tm.Issue("viewer", "viewer")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, doGet(router, viewer).Code)

	operator, _, err := tm.Issue("ops", RoleOperator)
	require.NoError(t, err)
	w := doGet(router, operator)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"subject":"ops"`)
}

func TestRequireRole_HeaderFormat(t *testing.T) {
	tm := NewTokenManager("s3cret", "", time.Hour)
	router := newAuthRouter(tm)
	token, _, err := tm.Issue("ops", RoleOperator)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Token "+token)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
