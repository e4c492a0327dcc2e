package certificates

import (
	"strings"
	"testing"
	"time"

	"aquanexus/marketplace-backend/internal/ledger"
	"aquanexus/marketplace-backend/internal/projects"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func testRecord(projectID string, ts time.Time) *ledger.Record {
	return &ledger.Record{
		ProjectID:     projectID,
		BuyerName:     "Acme",
		AmountPaid:    decimal.NewFromInt(5000),
		TransactionID: "0x" + strings.Repeat("ab", 32),
		Timestamp:     ts,
	}
}

func testProject(id string, quantity int64) *projects.Project {
	return &projects.Project{
		ID:             id,
		Name:           "Rancho " + id,
		Status:         projects.StatusSold,
		PricePerCredit: decimal.NewFromInt(10),
		ImpactQuantity: decimal.NewFromInt(quantity),
	}
}

func TestBuild(t *testing.T) {
	ts := time.Date(2026, 7, 14, 10, 0, 0, 0, time.UTC)
	rec := testRecord("p1", ts)

	cert := Build(rec, testProject("p1", 500))

	assert.Equal(t, "CERT-P1-2026", cert.ID)
	assert.Equal(t, "Acme", cert.Owner)
	assert.Equal(t, rec.TransactionID, cert.Hash)
	assert.True(t, cert.ImpactQuantity.Equal(decimal.NewFromInt(500)))
	assert.True(t, cert.CO2OffsetTons.Equal(decimal.RequireFromString("0.07")))
	assert.True(t, cert.AmountPaid.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, "Rancho p1", cert.ProjectName)
	assert.Equal(t, ts, cert.IssuedAt)
}

func TestBuild_YearFromRecordTimestamp(t *testing.T) {
	rec := testRecord("rancho-el-bajio", time.Date(2031, 12, 31, 23, 0, 0, 0, time.UTC))
	cert := Build(rec, testProject("rancho-el-bajio", 1))
	assert.Equal(t, "CERT-RANCHO-EL-BAJIO-2031", cert.ID)
}

func TestBuild_ZeroImpact(t *testing.T) {
	cert := Build(testRecord("p0", time.Now()), testProject("p0", 0))
	assert.True(t, cert.CO2OffsetTons.IsZero())
	assert.True(t, cert.ImpactQuantity.IsZero())
}

func TestBuild_Deterministic(t *testing.T) {
	rec := testRecord("p1", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	p := testProject("p1", 12345)
	assert.Equal(t, Build(rec, p), Build(rec, p))
}

func TestCertificateID_CaseCollision(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, CertificateID("abc", ts), CertificateID("ABC", ts))
}
