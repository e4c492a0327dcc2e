package ledger

import (
	"context"
	"io"

	"go.uber.org/zap"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Service exposes read access and exports over the ledger
type Service struct {
	store   Store
	options ExportOptions
	logger  *zap.Logger
}

// NewService creates a new ledger service
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		options: DefaultExportOptions(),
		logger:  logger,
	}
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Record, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	return s.store.List(ctx, filter)
}

// Export writes the full ledger, optionally restricted to one project
func (s *Service) Export(ctx context.Context, w io.Writer, format Format, projectID string) (int, error) {
	records, err := s.store.List(ctx, ListFilter{ProjectID: projectID})
	if err != nil {
		return 0, err
	}
	if err := Export(w, format, records, s.options); err != nil {
		return 0, err
	}
	s.logger.Info("Ledger exported",
		zap.String("format", string(format)),
		zap.Int("records", len(records)),
	)
	return len(records), nil
}
