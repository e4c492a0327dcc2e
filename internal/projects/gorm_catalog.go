package projects

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCatalog stores projects in postgres through gorm
type GormCatalog struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormCatalog creates a catalog backed by db
func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db, now: time.Now}
}

// AutoMigrate creates or updates the projects table
func (c *GormCatalog) AutoMigrate() error {
	return c.db.AutoMigrate(&Project{})
}

func (c *GormCatalog) Fetch(ctx context.Context, id string) (*Project, error) {
	var project Project
	err := c.db.WithContext(ctx).Where("id = ?", id).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to fetch project: %w", err)
	}
	return &project, nil
}

// TryTransition issues UPDATE ... WHERE id = ? AND status = ? RETURNING *
// so postgres decides the single winner and hands back the updated row in
// the same statement. RowsAffected of zero is resolved into not-found or
// precondition-failed with an existence check.
func (c *GormCatalog) TryTransition(ctx context.Context, id string, expected, next Status, fx SideEffects) (*Project, error) {
	if err := checkTransition(expected, next); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"status":     next,
		"updated_at": c.now().UTC(),
	}
	if fx.VerifiedByAutomatedCheck {
		updates["verified_by_automated_check"] = true
	}

	db := c.db.WithContext(ctx)
	var updated Project
	result := db.Model(&updated).
		Clauses(clause.Returning{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to transition project: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := db.Model(&Project{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check project existence: %w", err)
		}
		if count == 0 {
			return nil, ErrProjectNotFound
		}
		return nil, ErrPreconditionFailed
	}

	return &updated, nil
}

func (c *GormCatalog) List(ctx context.Context, filter ListFilter) ([]*Project, error) {
	query := c.db.WithContext(ctx).Model(&Project{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Region != "" {
		query = query.Where("region = ?", filter.Region)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var projects []*Project
	if err := query.Order("id").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

func (c *GormCatalog) Atomic() bool { return true }

// Seed inserts projects, skipping ids that already exist
func (c *GormCatalog) Seed(ctx context.Context, projects []*Project) (int, error) {
	if len(projects) == 0 {
		return 0, nil
	}
	now := c.now().UTC()
	rows := make([]*Project, 0, len(projects))
	for _, p := range projects {
		if err := validateSeed(p); err != nil {
			return 0, err
		}
		cp := p.Clone()
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		cp.UpdatedAt = now
		rows = append(rows, cp)
	}

	result := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&rows)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to seed projects: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

var (
	_ Gateway = (*GormCatalog)(nil)
	_ Seeder  = (*GormCatalog)(nil)
)
