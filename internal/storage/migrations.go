package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// migration is one schema change applied in order.
type migration struct {
	description string
	statements  []string
}

// migrations is the ordered schema history. The applied version is
// tracked in PRAGMA user_version; never reorder or edit entries, only
// append.
var migrations = []migration{
	{
		description: "create transactions table",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS transactions (
				id TEXT PRIMARY KEY,
				owner_id TEXT NOT NULL,
				job_id TEXT NOT NULL DEFAULT '',
				date TEXT NOT NULL,
				description TEXT NOT NULL,
				merchant_name TEXT NOT NULL DEFAULT '',
				amount TEXT NOT NULL,
				category TEXT NOT NULL DEFAULT '',
				subcategory TEXT NOT NULL DEFAULT '',
				fingerprint TEXT NOT NULL,
				source TEXT NOT NULL DEFAULT 'upload',
				source_identifier TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'unreconciled',
				matched_document_id TEXT NOT NULL DEFAULT '',
				sync_version INTEGER NOT NULL DEFAULT 0,
				last_synced_at TIMESTAMP,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_owner_fingerprint
				ON transactions(owner_id, fingerprint)`,
			`CREATE INDEX IF NOT EXISTS idx_transactions_owner_status
				ON transactions(owner_id, status)`,
		},
	},
	{
		description: "create documents table",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS documents (
				id TEXT PRIMARY KEY,
				owner_id TEXT NOT NULL,
				vendor_name TEXT NOT NULL DEFAULT '',
				total_amount TEXT NOT NULL,
				document_date TEXT,
				status TEXT NOT NULL DEFAULT 'unreconciled',
				matched_transaction_id TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_documents_owner_status
				ON documents(owner_id, status)`,
		},
	},
	{
		description: "create jobs table",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS jobs (
				id TEXT PRIMARY KEY,
				owner_id TEXT NOT NULL,
				source TEXT NOT NULL DEFAULT 'upload',
				file_name TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'pending',
				inserted INTEGER NOT NULL DEFAULT 0,
				skipped INTEGER NOT NULL DEFAULT 0,
				error_count INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_jobs_owner ON jobs(owner_id, created_at)`,
		},
	},
	{
		description: "enforce unique transaction fingerprints per owner",
		statements: []string{
			`DROP INDEX IF EXISTS idx_transactions_owner_fingerprint`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_owner_fingerprint
				ON transactions(owner_id, fingerprint)`,
		},
	},
}

// Migrate applies any pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for i := version; i < len(migrations); i++ {
		m := migrations[i]

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		for _, stmt := range m.statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d (%s) failed: %w", i+1, m.description, err)
			}
		}

		// PRAGMA cannot be parameterized.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", i+1, err)
		}

		slog.Info("applied migration", "version", i+1, "description", m.description)
	}

	return nil
}
