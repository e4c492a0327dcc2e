package certificates

import (
	"fmt"
	"strings"
	"time"

	"aquanexus/marketplace-backend/internal/impact"
	"aquanexus/marketplace-backend/internal/ledger"
	"aquanexus/marketplace-backend/internal/projects"

	"github.com/shopspring/decimal"
)

// Certificate is derived from a settlement record and its project. It is
// never stored as the source of truth; the ledger record is.
type Certificate struct {
	ID             string          `json:"id"`
	Owner          string          `json:"owner"`
	Hash           string          `json:"hash"`
	ImpactQuantity decimal.Decimal `json:"impact_quantity"`
	CO2OffsetTons  decimal.Decimal `json:"co2_offset_tons"`
	ProjectID      string          `json:"project_id"`
	ProjectName    string          `json:"project_name,omitempty"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	IssuedAt       time.Time       `json:"issued_at"`
}

// CertificateID formats "CERT-<PROJECT>-<YEAR>". Two projects whose ids
// differ only by case share an id, so it is not a uniqueness key.
func CertificateID(projectID string, issued time.Time) string {
	return fmt.Sprintf("CERT-%s-%d", strings.ToUpper(projectID), issued.UTC().Year())
}

// Build derives the certificate for record
func Build(record *ledger.Record, project *projects.Project) Certificate {
	cert := Certificate{
		ID:            CertificateID(record.ProjectID, record.Timestamp),
		Owner:         record.BuyerName,
		Hash:          record.TransactionID,
		ProjectID:     record.ProjectID,
		AmountPaid:    record.AmountPaid,
		IssuedAt:      record.Timestamp,
		CO2OffsetTons: decimal.Zero,
	}
	if project != nil {
		cert.ProjectName = project.Name
		cert.ImpactQuantity = project.ImpactQuantity
		cert.CO2OffsetTons = impact.CO2OffsetTons(project.ImpactQuantity)
	}
	return cert
}
