package projects

import (
	"time"

	"aquanexus/marketplace-backend/pkg/workflows"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Status is the sale state of a project listing
type Status string

const (
	StatusAvailable Status = workflows.StatusAvailable
	StatusSold      Status = workflows.StatusSold
)

// Project represents a water conservation site whose credits can be bought once
type Project struct {
	ID                       string          `gorm:"primaryKey;size:64" json:"id"`
	Name                     string          `gorm:"not null" json:"name"`
	Region                   string          `gorm:"index" json:"region"`
	Status                   Status          `gorm:"not null;default:'Available';index" json:"status"`
	PricePerCredit           decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"price_per_credit"`
	ImpactQuantity           decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"impact_quantity"` // m3 per year
	VerifiedByAutomatedCheck bool            `gorm:"not null;default:false" json:"verified_by_automated_check"`
	Latitude                 float64         `json:"latitude"`
	Longitude                float64         `json:"longitude"`
	RiskScore                float64         `json:"risk_score"`
	SatelliteIndex           float64         `json:"satellite_index"` // NDWI
	Narrative                string          `json:"narrative,omitempty"`
	Metadata                 datatypes.JSON  `json:"metadata,omitempty"`
	CreatedAt                time.Time       `json:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at"`
}

// TableName pins the table name used by the gorm catalog
func (Project) TableName() string {
	return "projects"
}

// IsAvailable reports whether the project can still be sold
func (p *Project) IsAvailable() bool {
	return p.Status == StatusAvailable
}

// Clone returns a deep copy so callers never share catalog state
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Metadata != nil {
		cp.Metadata = append(datatypes.JSON(nil), p.Metadata...)
	}
	return &cp
}

// SideEffects are the field changes applied together with a status transition
type SideEffects struct {
	VerifiedByAutomatedCheck bool
}

func (fx SideEffects) apply(p *Project) {
	if fx.VerifiedByAutomatedCheck {
		p.VerifiedByAutomatedCheck = true
	}
}

// ListFilter narrows catalog listings
type ListFilter struct {
	Status *Status
	Region string
	Limit  int
	Offset int
}

func (f ListFilter) matches(p *Project) bool {
	if f.Status != nil && p.Status != *f.Status {
		return false
	}
	if f.Region != "" && p.Region != f.Region {
		return false
	}
	return true
}

// page applies offset and limit to an already ordered slice
func (f ListFilter) page(items []*Project) []*Project {
	if f.Offset > 0 {
		if f.Offset >= len(items) {
			return []*Project{}
		}
		items = items[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(items) {
		items = items[:f.Limit]
	}
	return items
}
