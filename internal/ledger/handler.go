package ledger

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for ledger reads and exports
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers ledger routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	ledger := router.Group("/ledger")
	{
		ledger.GET("", h.listRecords)
		ledger.GET("/export", h.exportRecords)
	}
}

// listRecords handles GET /api/v1/ledger
func (h *Handler) listRecords(c *gin.Context) {
	filter := ListFilter{
		ProjectID: c.Query("project_id"),
		Limit:     h.getIntParam(c, "limit", DefaultListLimit),
		Offset:    h.getIntParam(c, "offset", 0),
	}

	records, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list ledger", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list ledger"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
	})
}

// exportRecords handles GET /api/v1/ledger/export
func (h *Handler) exportRecords(c *gin.Context) {
	format, err := ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var buf bytes.Buffer
	if _, err := h.service.Export(c.Request.Context(), &buf, format, c.Query("project_id")); err != nil {
		h.logger.Error("Failed to export ledger", zap.String("format", string(format)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export ledger"})
		return
	}

	filename := fmt.Sprintf("ledger-%s.%s", time.Now().UTC().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

func (h *Handler) getIntParam(c *gin.Context, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil && i >= 0 {
			return i
		}
	}
	return defaultVal
}
