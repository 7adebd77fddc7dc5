// Package model defines the core domain types shared across the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionSource identifies where a transaction record came from.
type TransactionSource string

// Transaction sources.
const (
	SourceUpload       TransactionSource = "upload"
	SourceExternalSync TransactionSource = "external_sync"
	SourceManual       TransactionSource = "manual"
	SourceAPI          TransactionSource = "api"
)

// ReconciliationStatus tracks whether a record has been linked to its
// counterpart (transaction <-> document).
type ReconciliationStatus string

// Reconciliation statuses.
const (
	StatusUnreconciled ReconciliationStatus = "unreconciled"
	StatusMatched      ReconciliationStatus = "matched"
)

// Transaction represents a single ledger entry from any source.
// Amount is signed: negative values are debits.
type Transaction struct {
	Date              time.Time
	LastSyncedAt      *time.Time
	ID                string
	OwnerID           string
	Description       string // Raw transaction description
	MerchantName      string // Cleaned merchant name, when available
	Category          string
	Subcategory       string
	Fingerprint       string
	Source            TransactionSource
	SourceIdentifier  string
	Status            ReconciliationStatus
	MatchedDocumentID string
	JobID             string
	Amount            decimal.Decimal
	SyncVersion       int64
}

// Fingerprint computes the deterministic content hash identifying a
// transaction for deduplication and sync indexing.
//
// The normalized form is a hard compatibility contract: description is
// lower-cased and trimmed, the amount is rendered as a fixed-point string
// with exactly two decimal places (never scientific notation, never
// platform-dependent float formatting), and the date keeps only its
// calendar day as YYYY-MM-DD. The three fields are joined with "|" and
// hashed with SHA-256. Any change here breaks dedup against stored rows
// and orphans every fingerprint already written to the sheet mirror.
func Fingerprint(description string, amount decimal.Decimal, date time.Time) string {
	data := fmt.Sprintf("%s|%s|%s",
		strings.ToLower(strings.TrimSpace(description)),
		amount.StringFixed(2),
		date.Format("2006-01-02"))
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// CanFingerprint reports whether the transaction carries the fields the
// fingerprint is derived from. Records missing a description or date are
// excluded from dedup and sync rather than crashing the batch.
func (t *Transaction) CanFingerprint() bool {
	return strings.TrimSpace(t.Description) != "" && !t.Date.IsZero()
}

// ComputeFingerprint derives and stores the transaction's fingerprint.
// Returns the empty string when the transaction is not fingerprintable.
func (t *Transaction) ComputeFingerprint() string {
	if !t.CanFingerprint() {
		return ""
	}
	t.Fingerprint = Fingerprint(t.Description, t.Amount, t.Date)
	return t.Fingerprint
}

// DisplayName returns the cleaned merchant name when one is known,
// falling back to the raw description.
func (t *Transaction) DisplayName() string {
	if t.MerchantName != "" {
		return t.MerchantName
	}
	return t.Description
}
