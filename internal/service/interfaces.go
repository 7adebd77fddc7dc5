// Package service defines the interfaces between the engine and its
// collaborators: persistence, the remote tabular store, and retry policy.
package service

import (
	"context"
	"time"

	"github.com/pennyworth/tally/internal/model"
)

// FingerprintRef is one stored fingerprint together with the ingestion
// job that inserted it.
type FingerprintRef struct {
	Fingerprint string
	JobID       string
}

// TransactionStore is the persistence contract for transactions. Any
// store (relational, document, key-value) satisfying these operations
// suffices; the engine never sees SQL.
type TransactionStore interface {
	// FingerprintsByOwner returns every stored fingerprint for the owner
	// in a single query, with no row limit.
	FingerprintsByOwner(ctx context.Context, ownerID string) ([]FingerprintRef, error)
	// InsertBatch inserts rows and returns how many landed.
	InsertBatch(ctx context.Context, txns []model.Transaction) (int, error)
	UnreconciledTransactions(ctx context.Context, ownerID string) ([]model.Transaction, error)
	TransactionsByOwner(ctx context.Context, ownerID string) ([]model.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	// LinkMatch sets both sides of a transaction<->document match
	// atomically and bumps the transaction's sync version.
	LinkMatch(ctx context.Context, transactionID, documentID string) error
	// UnlinkMatch soft-unmatches both sides. Matched rows are never
	// physically deleted; they must be unlinked first.
	UnlinkMatch(ctx context.Context, transactionID string) error
	MarkSynced(ctx context.Context, ownerID string, fingerprints []string, at time.Time) error
}

// DocumentStore is the persistence contract for financial documents.
type DocumentStore interface {
	UnreconciledDocuments(ctx context.Context, ownerID string) ([]model.Document, error)
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	SaveDocuments(ctx context.Context, docs []model.Document) error
}

// JobStore is the persistence contract for ingestion jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job *model.Job) (string, error)
	UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus, inserted, skipped, errorCount int) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, ownerID string) ([]model.Job, error)
}

// ValueRange is one rectangular block of cell values anchored at an A1
// range, mirroring the shape spreadsheet APIs expose.
type ValueRange struct {
	Range  string
	Values [][]any
}

// SheetAPI is the remote tabular store contract. It is modeled on a
// spreadsheet API but abstract enough for any sync target exposing
// ranged read/write and a rate-limit error signal.
type SheetAPI interface {
	BatchGet(ctx context.Context, spreadsheetID string, ranges []string) ([]ValueRange, error)
	BatchUpdate(ctx context.Context, spreadsheetID string, data []ValueRange) error
	Append(ctx context.Context, spreadsheetID, rangeA1 string, rows [][]any) error
}

// RetryOptions configures retry behavior for remote operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Jitter       time.Duration
	Multiplier   float64
}
