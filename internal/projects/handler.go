package projects

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for the project catalog
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new projects handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers catalog routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/projects", h.listProjects)
	router.GET("/projects.geojson", h.getGeoJSON)
	router.GET("/projects/:id", h.getProject)
}

// listProjects handles GET /projects
func (h *Handler) listProjects(c *gin.Context) {
	filter, err := parseListFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	projects, err := h.service.ListProjects(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list projects", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list projects"})
		return
	}

	c.JSON(http.StatusOK, projects)
}

// getProject handles GET /projects/:id
func (h *Handler) getProject(c *gin.Context) {
	id := c.Param("id")

	project, err := h.service.GetProject(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "project not found"})
			return
		}
		h.logger.Error("Failed to get project", zap.String("project_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get project"})
		return
	}

	c.JSON(http.StatusOK, project)
}

// getGeoJSON handles GET /projects.geojson
func (h *Handler) getGeoJSON(c *gin.Context) {
	filter, err := parseListFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fc, err := h.service.FeatureCollection(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to build project feature collection", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build feature collection"})
		return
	}

	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, fc)
}

func parseListFilter(c *gin.Context) (ListFilter, error) {
	var filter ListFilter
	if status := c.Query("status"); status != "" {
		st := Status(status)
		if !transitions.IsKnown(status) {
			return filter, errors.New("invalid status filter")
		}
		filter.Status = &st
	}
	filter.Region = c.Query("region")

	var err error
	if filter.Limit, err = intQuery(c, "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = intQuery(c, "offset"); err != nil {
		return filter, err
	}
	return filter, nil
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}
