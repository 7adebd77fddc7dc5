package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Document is an invoice or receipt with extracted financial fields.
// TotalAmount is an unsigned magnitude; documents do not carry direction.
// A document matches at most one transaction at a time, and vice versa.
type Document struct {
	DocumentDate         *time.Time
	ID                   string
	OwnerID              string
	VendorName           string
	Status               ReconciliationStatus
	MatchedTransactionID string
	TotalAmount          decimal.Decimal
}
