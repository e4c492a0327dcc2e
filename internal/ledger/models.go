package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Record is an immutable settlement entry. Once appended it is never
// updated or deleted.
type Record struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	ProjectID     string          `db:"project_id" json:"project_id"`
	BuyerName     string          `db:"buyer_name" json:"buyer_name"`
	AmountPaid    decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	TransactionID string          `db:"transaction_id" json:"transaction_id"`
	Timestamp     time.Time       `db:"created_at" json:"timestamp"`
}

// Validate checks the fields every stored record must carry
func (r *Record) Validate() error {
	switch {
	case r.ProjectID == "":
		return errors.New("record project_id is required")
	case r.TransactionID == "":
		return errors.New("record transaction_id is required")
	case r.AmountPaid.IsNegative():
		return errors.New("record amount_paid must not be negative")
	case r.Timestamp.IsZero():
		return errors.New("record timestamp is required")
	}
	return nil
}

// Clone returns a copy of the record
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// ListFilter narrows ledger listings
type ListFilter struct {
	ProjectID string
	Limit     int
	Offset    int
}
