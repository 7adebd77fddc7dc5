// Package dedup detects exact-fingerprint duplicates between an incoming
// batch of transactions and everything already stored for an owner.
//
// Detection is intentionally exact: two transactions are duplicates only
// when their fingerprints are equal. Fuzzy matching lives in the match
// engine, which pairs records of different types (transaction vs.
// document), never rows within the same upload.
package dedup

import (
	"context"
	"log/slog"
	"sort"

	"github.com/pennyworth/tally/internal/model"
	"github.com/pennyworth/tally/internal/service"
)

// Report is the outcome of comparing one incoming batch against storage.
type Report struct {
	NewTransactions       []model.Transaction
	DuplicateTransactions []model.Transaction
	MatchingJobIDs        []string
	SimilarityScore       float64
}

// Detector compares incoming transactions against stored fingerprints.
type Detector struct {
	store  service.TransactionStore
	logger *slog.Logger
}

// NewDetector creates a duplicate detector backed by the given store.
func NewDetector(store service.TransactionStore, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{store: store, logger: logger}
}

// Detect partitions incoming transactions into new rows and duplicates
// of rows already stored for the owner. Stored fingerprints are fetched
// in a single query; each incoming transaction is then a map lookup.
//
// SimilarityScore is 100 * duplicates / total incoming. MatchingJobIDs
// collects the ingestion jobs referenced by matched existing rows so the
// caller can report "this looks like job X uploaded again".
func (d *Detector) Detect(ctx context.Context, incoming []model.Transaction, ownerID string) (*Report, error) {
	existing, err := d.store.FingerprintsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	// A fingerprint can appear on several stored rows; one hit is enough
	// to call the incoming transaction a duplicate.
	byFingerprint := make(map[string][]service.FingerprintRef, len(existing))
	for _, ref := range existing {
		byFingerprint[ref.Fingerprint] = append(byFingerprint[ref.Fingerprint], ref)
	}

	report := &Report{}
	jobIDs := make(map[string]struct{})

	for _, txn := range incoming {
		if !txn.CanFingerprint() {
			// Upstream should have rejected this row. Excluded from
			// comparison rather than failing the batch.
			d.logger.Warn("transaction missing fields required for fingerprinting",
				"id", txn.ID,
				"source", txn.Source)
			report.NewTransactions = append(report.NewTransactions, txn)
			continue
		}
		txn.ComputeFingerprint()

		refs, found := byFingerprint[txn.Fingerprint]
		if !found {
			report.NewTransactions = append(report.NewTransactions, txn)
			continue
		}

		report.DuplicateTransactions = append(report.DuplicateTransactions, txn)
		for _, ref := range refs {
			if ref.JobID != "" {
				jobIDs[ref.JobID] = struct{}{}
			}
		}
	}

	if len(incoming) > 0 {
		report.SimilarityScore = 100 * float64(len(report.DuplicateTransactions)) / float64(len(incoming))
	}

	report.MatchingJobIDs = make([]string, 0, len(jobIDs))
	for id := range jobIDs {
		report.MatchingJobIDs = append(report.MatchingJobIDs, id)
	}
	sort.Strings(report.MatchingJobIDs)

	d.logger.Debug("duplicate detection complete",
		"owner", ownerID,
		"incoming", len(incoming),
		"duplicates", len(report.DuplicateTransactions),
		"similarity", report.SimilarityScore)

	return report, nil
}
