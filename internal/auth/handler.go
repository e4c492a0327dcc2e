package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	tokens *TokenManager
}

func NewHandler(tokens *TokenManager) *Handler {
	return &Handler{tokens: tokens}
}

// RegisterRoutes registers auth routes. /auth/me requires an operator token.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/auth")
	group.GET("/ping", h.Ping)
	group.GET("/me", RequireRole(h.tokens, RoleOperator), h.Me)
}

// Ping endpoint
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "auth service alive!"})
}

// Me returns the caller's token claims
func (h *Handler) Me(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subject":    claims.Subject,
		"role":       claims.Role,
		"expires_at": claims.ExpiresAt,
	})
}
