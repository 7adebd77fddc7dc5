// Package merge decides how an upload is applied to storage: insert
// everything, skip duplicates, or reject the batch outright.
package merge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pennyworth/tally/internal/common"
	"github.com/pennyworth/tally/internal/dedup"
	"github.com/pennyworth/tally/internal/model"
	"github.com/pennyworth/tally/internal/service"
)

// insertChunkSize bounds the size of a single insert batch.
const insertChunkSize = 100

// Options carries the per-upload knobs for ProcessUpload.
type Options struct {
	OwnerID  string
	Source   model.TransactionSource
	JobID    string // reuse an existing job instead of creating one
	FileName string
	// SkipDuplicateCheck inserts everything unconditionally. Escape
	// hatch for callers that have already deduplicated upstream.
	SkipDuplicateCheck bool
}

// Service orchestrates the insert-vs-merge decision for new uploads.
type Service struct {
	txnStore service.TransactionStore
	jobStore service.JobStore
	detector *dedup.Detector
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a merge service.
func NewService(txnStore service.TransactionStore, jobStore service.JobStore, detector *dedup.Detector, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		txnStore: txnStore,
		jobStore: jobStore,
		detector: detector,
		logger:   logger,
		now:      time.Now,
	}
}

// ProcessUpload applies one batch of transactions to storage.
//
// Policy: with SkipDuplicateCheck set, everything is inserted. Otherwise
// any exact duplicate puts the upload in merge mode and only the
// non-duplicate subset is inserted. There is no similarity-threshold
// fallback to insert-all, since that double-inserts legitimate
// partial-overlap re-uploads. Zero duplicates means plain insert mode.
//
// If no job id was supplied, a job is created first and all inserted
// rows are attributed to it; if job creation fails the whole upload is
// rejected rather than inserting orphaned rows. Rows that cannot be
// stored at all (no id, no date) are dropped with a per-row error so
// the rest of the upload still lands. Insert chunk failures are
// recorded in the result and do not abort later chunks: partial
// failure is reported through counts, never as a returned error.
func (s *Service) ProcessUpload(ctx context.Context, txns []model.Transaction, opts Options) (*model.MergeResult, error) {
	result := &model.MergeResult{
		Mode:  model.MergeModeInsert,
		Total: len(txns),
	}

	toInsert := txns
	if !opts.SkipDuplicateCheck {
		report, err := s.detector.Detect(ctx, txns, opts.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("duplicate detection failed: %w", err)
		}
		if len(report.DuplicateTransactions) > 0 {
			result.Mode = model.MergeModeMerge
			result.Skipped = len(report.DuplicateTransactions)
			toInsert = report.NewTransactions
			s.logger.Info("duplicates detected, entering merge mode",
				"owner", opts.OwnerID,
				"duplicates", result.Skipped,
				"similarity", report.SimilarityScore,
				"matching_jobs", report.MatchingJobIDs)
		}
	}

	// Storage inserts a chunk all or nothing, so one unstorable row would
	// sink up to a whole chunk of good ones. Weed them out first.
	storable := make([]model.Transaction, 0, len(toInsert))
	for i := range toInsert {
		if err := storableRow(&toInsert[i]); err != nil {
			result.Errors = append(result.Errors, err.Error())
			s.logger.Warn("dropping unstorable row",
				"owner", opts.OwnerID,
				"error", err)
			continue
		}
		storable = append(storable, toInsert[i])
	}
	toInsert = storable

	jobID := opts.JobID
	if jobID == "" {
		created, err := s.createJob(ctx, opts)
		if err != nil {
			result.Mode = model.MergeModeReject
			s.logger.Error("job creation failed, rejecting upload",
				"owner", opts.OwnerID,
				"error", err)
			return result, fmt.Errorf("%w: %v", common.ErrJobCreation, err)
		}
		jobID = created
	}
	result.JobID = jobID

	for i := 0; i < len(toInsert); i += insertChunkSize {
		end := min(i+insertChunkSize, len(toInsert))
		chunk := make([]model.Transaction, end-i)
		copy(chunk, toInsert[i:end])
		for j := range chunk {
			chunk[j].OwnerID = opts.OwnerID
			chunk[j].JobID = jobID
			chunk[j].Source = opts.Source
			if chunk[j].Status == "" {
				chunk[j].Status = model.StatusUnreconciled
			}
			if chunk[j].Fingerprint == "" {
				chunk[j].ComputeFingerprint()
			}
		}

		inserted, err := s.txnStore.InsertBatch(ctx, chunk)
		result.Inserted += inserted
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("batch starting at %d: %v", i, err))
			s.logger.Warn("insert batch failed, continuing",
				"start", i,
				"size", len(chunk),
				"error", err)
		}
	}

	status := model.JobCompleted
	if len(result.Errors) > 0 {
		status = model.JobFailed
	}
	if err := s.jobStore.UpdateJobStatus(ctx, jobID, status, result.Inserted, result.Skipped, len(result.Errors)); err != nil {
		s.logger.Warn("failed to update job status", "job", jobID, "error", err)
	}

	s.logger.Info("upload processed",
		"owner", opts.OwnerID,
		"mode", result.Mode,
		"job", jobID,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"errors", len(result.Errors))

	return result, nil
}

// storableRow reports whether the row satisfies what storage requires
// of every insert.
func storableRow(txn *model.Transaction) error {
	if txn.ID == "" {
		return fmt.Errorf("transaction with description %q has no id", txn.Description)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("transaction %s has no date", txn.ID)
	}
	return nil
}

func (s *Service) createJob(ctx context.Context, opts Options) (string, error) {
	job := &model.Job{
		ID:        uuid.NewString(),
		OwnerID:   opts.OwnerID,
		Source:    opts.Source,
		FileName:  opts.FileName,
		Status:    model.JobPending,
		CreatedAt: s.now(),
	}
	return s.jobStore.CreateJob(ctx, job)
}
