package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pennyworth/tally/internal/common"
	"github.com/pennyworth/tally/internal/model"
)

// CreateJob records a new ingestion job and returns its id.
func (s *SQLiteStorage) CreateJob(ctx context.Context, job *model.Job) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}
	if err := validateString(job.ID, "job.ID"); err != nil {
		return "", err
	}
	if err := validateString(job.OwnerID, "job.OwnerID"); err != nil {
		return "", err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, owner_id, source, file_name, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.OwnerID, string(job.Source), job.FileName, string(job.Status), job.CreatedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	return job.ID, nil
}

// UpdateJobStatus records the final counts of a processed upload.
func (s *SQLiteStorage) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus, inserted, skipped, errorCount int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, inserted = ?, skipped = ?, error_count = ?
		WHERE id = ?`,
		string(status), inserted, skipped, errorCount, jobID)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s: %w", jobID, common.ErrNotFound)
	}

	return nil
}

// GetJob returns one job by id.
func (s *SQLiteStorage) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	job, err := scanJob(s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, source, file_name, status, inserted, skipped, error_count, created_at
		FROM jobs WHERE id = ?`, jobID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job %s: %w", jobID, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs returns the owner's jobs, most recent first.
func (s *SQLiteStorage) ListJobs(ctx context.Context, ownerID string) ([]model.Job, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, source, file_name, status, inserted, skipped, error_count, created_at
		FROM jobs WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}

	return jobs, rows.Err()
}

func scanJob(row rowScanner) (*model.Job, error) {
	var job model.Job
	var source, status string

	err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&source,
		&job.FileName,
		&status,
		&job.Inserted,
		&job.Skipped,
		&job.ErrorCount,
		&job.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Source = model.TransactionSource(source)
	job.Status = model.JobStatus(status)

	return &job, nil
}
