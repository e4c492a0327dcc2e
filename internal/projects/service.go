package projects

import (
	"context"
	"fmt"

	"aquanexus/marketplace-backend/pkg/geospatial"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

// Service exposes read operations over the catalog
type Service struct {
	catalog Gateway
	logger  *zap.Logger
}

// NewService creates a new projects service
func NewService(catalog Gateway, logger *zap.Logger) *Service {
	return &Service{
		catalog: catalog,
		logger:  logger,
	}
}

func (s *Service) ListProjects(ctx context.Context, filter ListFilter) ([]*Project, error) {
	return s.catalog.List(ctx, filter)
}

func (s *Service) GetProject(ctx context.Context, id string) (*Project, error) {
	return s.catalog.Fetch(ctx, id)
}

// FeatureCollection renders the catalog as GeoJSON points for the map view.
// Projects with out-of-range coordinates are skipped.
func (s *Service) FeatureCollection(ctx context.Context, filter ListFilter) (*geojson.FeatureCollection, error) {
	projects, err := s.catalog.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	features := make([]*geojson.Feature, 0, len(projects))
	for _, p := range projects {
		f, err := geospatial.SiteFeature(p.ID, p.Latitude, p.Longitude, map[string]interface{}{
			"name":             p.Name,
			"region":           p.Region,
			"status":           string(p.Status),
			"price_per_credit": p.PricePerCredit.String(),
			"impact_quantity":  p.ImpactQuantity.String(),
			"risk_score":       p.RiskScore,
			"satellite_index":  p.SatelliteIndex,
		})
		if err != nil {
			s.logger.Warn("Skipping project with invalid coordinates",
				zap.String("project_id", p.ID),
				zap.Float64("latitude", p.Latitude),
				zap.Float64("longitude", p.Longitude),
			)
			continue
		}
		features = append(features, f)
	}
	return geospatial.Collection(features), nil
}
