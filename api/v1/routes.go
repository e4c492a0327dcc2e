package v1

import (
	"net/http"
	"strings"
	"time"

	"aquanexus/marketplace-backend/internal/auth"
	"aquanexus/marketplace-backend/internal/ledger"
	"aquanexus/marketplace-backend/internal/logger"
	"aquanexus/marketplace-backend/internal/notifications/websocket"
	"aquanexus/marketplace-backend/internal/projects"
	"aquanexus/marketplace-backend/internal/settlement"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// API holds the handlers mounted by NewRouter. Feed, Tokens and Gatherer
// are optional; their routes are skipped when nil.
type API struct {
	Projects       *projects.Handler
	Ledger         *ledger.Handler
	Settlement     *settlement.Handler
	Auth           *auth.Handler
	Feed           *websocket.Hub
	Tokens         *auth.TokenManager
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
}

// NewRouter builds the HTTP router
func NewRouter(api API, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(logger.GinMiddleware(log), logger.Recovery(log), CORS(api.AllowedOrigins))

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "AquaNexus API Online"})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})
	if api.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(api.Gatherer, promhttp.HandlerOpts{})))
	}

	// Paths the existing frontend calls
	legacy := router.Group("/api")
	{
		api.Projects.RegisterRoutes(legacy)
		legacy.POST("/buy-credits", api.Settlement.Settle)
	}

	v1 := router.Group("/api/v1")
	{
		api.Projects.RegisterRoutes(v1)
		api.Ledger.RegisterRoutes(v1)
		api.Settlement.RegisterRoutes(v1)
		if api.Auth != nil {
			api.Auth.RegisterRoutes(v1)
		}
		if api.Feed != nil {
			v1.GET("/ws/settlements", api.Feed.ServeFeed)
		}
		if api.Tokens != nil {
			admin := v1.Group("/admin", auth.RequireRole(api.Tokens, auth.RoleOperator))
			api.Settlement.RegisterAdminRoutes(admin)
		}
	}

	return router
}

// CORS allows the listed origins. "*" or an empty list allows any origin.
func CORS(allowed []string) gin.HandlerFunc {
	allowAll := len(allowed) == 0
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		origins[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origins[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, "+logger.RequestIDHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", strings.Join([]string{
			http.MethodGet, http.MethodPost, http.MethodOptions,
		}, ", "))

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
