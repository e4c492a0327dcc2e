package settlement

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"aquanexus/marketplace-backend/internal/certificates"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const SuccessMessage = "Resiliencia Adquirida"

// CertificateRenderer renders a certificate document
type CertificateRenderer interface {
	Render(ctx context.Context, cert certificates.Certificate) ([]byte, error)
}

// Handler handles HTTP requests for settlements and certificates
type Handler struct {
	engine     *Engine
	renderer   CertificateRenderer
	reconciler *Reconciler
	logger     *zap.Logger
}

// NewHandler creates a new settlement handler. reconciler may be nil.
func NewHandler(engine *Engine, renderer CertificateRenderer, reconciler *Reconciler, logger *zap.Logger) *Handler {
	return &Handler{
		engine:     engine,
		renderer:   renderer,
		reconciler: reconciler,
		logger:     logger,
	}
}

// RegisterRoutes registers settlement routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/settlements", h.Settle)
	router.GET("/certificates/:projectId", h.getCertificate)
	router.GET("/certificates/:projectId/pdf", h.getCertificatePDF)
}

// RegisterAdminRoutes registers operator routes. Callers apply auth.
func (h *Handler) RegisterAdminRoutes(router *gin.RouterGroup) {
	router.GET("/reconciliation", h.getReconciliation)
}

// CertificateResponse is the buyer-facing certificate
type CertificateResponse struct {
	ID             string          `json:"id"`
	Owner          string          `json:"owner"`
	Hash           string          `json:"hash"`
	ImpactQuantity decimal.Decimal `json:"impact_quantity"`
	CO2OffsetTons  decimal.Decimal `json:"co2_offset_tons"`
	WaterOffset    string          `json:"water_offset"`
	CO2Offset      string          `json:"co2_offset"`
	ProjectID      string          `json:"project_id"`
	ProjectName    string          `json:"project_name,omitempty"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	IssuedAt       time.Time       `json:"issued_at"`
}

// SettleResponse is returned for a completed settlement
type SettleResponse struct {
	Status      string              `json:"status"`
	Message     string              `json:"message"`
	Certificate CertificateResponse `json:"certificate"`
}

// ReconciliationResponse is the operator view of reconciliation state
type ReconciliationResponse struct {
	ReconciliationSnapshot
	CertificateCache *certificates.CacheStats `json:"certificate_cache,omitempty"`
}

// ErrorBody describes a rejected request
type ErrorBody struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// ErrorResponse is returned for every rejected request
type ErrorResponse struct {
	Status string    `json:"status"`
	Error  ErrorBody `json:"error"`
}

func newCertificateResponse(cert certificates.Certificate) CertificateResponse {
	return CertificateResponse{
		ID:             cert.ID,
		Owner:          cert.Owner,
		Hash:           cert.Hash,
		ImpactQuantity: cert.ImpactQuantity,
		CO2OffsetTons:  cert.CO2OffsetTons,
		WaterOffset:    fmt.Sprintf("%s m3", cert.ImpactQuantity.String()),
		CO2Offset:      fmt.Sprintf("%s Ton CO2e", cert.CO2OffsetTons.String()),
		ProjectID:      cert.ProjectID,
		ProjectName:    cert.ProjectName,
		AmountPaid:     cert.AmountPaid,
		IssuedAt:       cert.IssuedAt,
	}
}

// StatusCode maps an error kind to an HTTP status
func StatusCode(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindProjectNotFound:
		return http.StatusNotFound
	case KindAlreadySold:
		return http.StatusConflict
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var se *Error
	if !errors.As(err, &se) {
		h.logger.Error("Unexpected settlement error", zap.Error(err))
		se = &Error{Kind: KindInternal, Message: "internal error"}
	}
	c.JSON(StatusCode(se.Kind), ErrorResponse{
		Status: "error",
		Error:  ErrorBody{Kind: se.Kind, Message: se.Message},
	})
}

// Settle handles POST /settlements and the legacy POST /buy-credits
func (h *Handler) Settle(c *gin.Context) {
	var req SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, &Error{Kind: KindValidation, Message: "invalid request body", Err: err})
		return
	}

	result, err := h.engine.Settle(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SettleResponse{
		Status:      "success",
		Message:     SuccessMessage,
		Certificate: newCertificateResponse(result.Certificate),
	})
}

// getCertificate handles GET /certificates/:projectId
func (h *Handler) getCertificate(c *gin.Context) {
	cert, err := h.engine.Certificate(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCertificateResponse(cert))
}

// getCertificatePDF handles GET /certificates/:projectId/pdf
func (h *Handler) getCertificatePDF(c *gin.Context) {
	cert, err := h.engine.Certificate(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	data, err := h.renderer.Render(c.Request.Context(), cert)
	if err != nil {
		h.logger.Error("Failed to render certificate",
			zap.String("certificate_id", cert.ID),
			zap.Error(err),
		)
		h.respondError(c, &Error{Kind: KindInternal, Message: "failed to render certificate", ProjectID: cert.ProjectID, Err: err})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, cert.ID))
	c.Data(http.StatusOK, certificates.ContentTypePDF, data)
}

// getReconciliation handles GET /admin/reconciliation
func (h *Handler) getReconciliation(c *gin.Context) {
	if h.reconciler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reconciler not running"})
		return
	}
	resp := ReconciliationResponse{ReconciliationSnapshot: h.reconciler.Snapshot()}
	if stats, ok := h.engine.CertificateCacheStats(); ok {
		resp.CertificateCache = &stats
	}
	c.JSON(http.StatusOK, resp)
}
