package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/pennyworth/tally/internal/common"
	"github.com/pennyworth/tally/internal/model"
	"github.com/pennyworth/tally/internal/service"
)

const transactionColumns = `id, owner_id, job_id, date, description, merchant_name, amount,
	category, subcategory, fingerprint, source, source_identifier,
	status, matched_document_id, sync_version, last_synced_at`

// FingerprintsByOwner returns every stored fingerprint for the owner in
// a single query, together with the job that inserted each row.
func (s *SQLiteStorage) FingerprintsByOwner(ctx context.Context, ownerID string) ([]service.FingerprintRef, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(ownerID, "ownerID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, job_id FROM transactions WHERE owner_id = ? AND fingerprint != ''`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var refs []service.FingerprintRef
	for rows.Next() {
		var ref service.FingerprintRef
		if err := rows.Scan(&ref.Fingerprint, &ref.JobID); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		refs = append(refs, ref)
	}

	return refs, rows.Err()
}

// InsertBatch inserts the given transactions in a single database
// transaction: a chunk either lands entirely or not at all. Rows whose
// (owner, fingerprint) already exists are ignored by the unique index,
// so a re-insert of an already stored statement is a no-op at the
// database layer too. The returned count is the number of rows that
// actually landed.
func (s *SQLiteStorage) InsertBatch(ctx context.Context, txns []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateTransactions(txns); err != nil {
		return 0, err
	}
	if len(txns) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (
			id, owner_id, job_id, date, description, merchant_name, amount,
			category, subcategory, fingerprint, source, source_identifier,
			status, matched_document_id, sync_version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, fingerprint) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for i := range txns {
		txn := &txns[i]
		if txn.Fingerprint == "" {
			txn.ComputeFingerprint()
		}
		if txn.Status == "" {
			txn.Status = model.StatusUnreconciled
		}

		res, err := stmt.ExecContext(ctx,
			txn.ID,
			txn.OwnerID,
			txn.JobID,
			txn.Date.Format("2006-01-02"),
			txn.Description,
			txn.MerchantName,
			txn.Amount.StringFixed(2),
			txn.Category,
			txn.Subcategory,
			txn.Fingerprint,
			string(txn.Source),
			txn.SourceIdentifier,
			string(txn.Status),
			txn.MatchedDocumentID,
			txn.SyncVersion,
		)
		if err != nil {
			var sqliteErr sqlite3.Error
			if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
				return 0, fmt.Errorf("failed to insert transaction %s: %w", txn.ID, common.ErrDuplicateEntry)
			}
			return 0, fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to count inserted rows: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit inserts: %w", err)
	}

	return inserted, nil
}

// UnreconciledTransactions returns the owner's transactions that have
// not been matched to a document yet.
func (s *SQLiteStorage) UnreconciledTransactions(ctx context.Context, ownerID string) ([]model.Transaction, error) {
	return s.queryTransactions(ctx,
		fmt.Sprintf(`SELECT %s FROM transactions WHERE owner_id = ? AND status = ? ORDER BY date, id`, transactionColumns),
		ownerID, string(model.StatusUnreconciled))
}

// TransactionsByOwner returns all of the owner's transactions.
func (s *SQLiteStorage) TransactionsByOwner(ctx context.Context, ownerID string) ([]model.Transaction, error) {
	return s.queryTransactions(ctx,
		fmt.Sprintf(`SELECT %s FROM transactions WHERE owner_id = ? ORDER BY date, id`, transactionColumns),
		ownerID)
}

// GetTransaction returns one transaction by id.
func (s *SQLiteStorage) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM transactions WHERE id = ?`, transactionColumns), id)

	txn, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// LinkMatch links a transaction and a document as the same real-world
// payment. Both sides are updated in one database transaction, and the
// transaction's sync version is bumped so the next sheet sync rewrites
// its row. Either side already being matched fails the link.
func (s *SQLiteStorage) LinkMatch(ctx context.Context, transactionID, documentID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = ?, matched_document_id = ?, sync_version = sync_version + 1
		WHERE id = ? AND status = ?`,
		string(model.StatusMatched), documentID, transactionID, string(model.StatusUnreconciled))
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", transactionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %s: %w", transactionID, common.ErrAlreadyMatched)
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, matched_transaction_id = ?
		WHERE id = ? AND status = ?`,
		string(model.StatusMatched), transactionID, documentID, string(model.StatusUnreconciled))
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", documentID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("document %s: %w", documentID, common.ErrAlreadyMatched)
	}

	return tx.Commit()
}

// UnlinkMatch soft-unmatches a transaction and its document. This is the
// only way to undo a match; matched rows are never physically deleted.
func (s *SQLiteStorage) UnlinkMatch(ctx context.Context, transactionID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var documentID string
	err = tx.QueryRowContext(ctx,
		`SELECT matched_document_id FROM transactions WHERE id = ?`, transactionID).
		Scan(&documentID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("transaction %s: %w", transactionID, common.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load transaction %s: %w", transactionID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = ?, matched_document_id = '', sync_version = sync_version + 1
		WHERE id = ?`,
		string(model.StatusUnreconciled), transactionID); err != nil {
		return fmt.Errorf("failed to unlink transaction %s: %w", transactionID, err)
	}

	if documentID != "" {
		if _, err := tx.ExecContext(ctx, `
			UPDATE documents
			SET status = ?, matched_transaction_id = ''
			WHERE id = ?`,
			string(model.StatusUnreconciled), documentID); err != nil {
			return fmt.Errorf("failed to unlink document %s: %w", documentID, err)
		}
	}

	return tx.Commit()
}

// MarkSynced records when the given fingerprints last reached the mirror.
func (s *SQLiteStorage) MarkSynced(ctx context.Context, ownerID string, fingerprints []string, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(fingerprints) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(fingerprints))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(fingerprints)+2)
	args = append(args, at.UTC(), ownerID)
	for _, fp := range fingerprints {
		args = append(args, fp)
	}

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE transactions SET last_synced_at = ?
		WHERE owner_id = ? AND fingerprint IN (%s)`, placeholders), args...)
	if err != nil {
		return fmt.Errorf("failed to mark transactions synced: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var date, amount, source, status string
	var lastSyncedAt sql.NullTime

	err := row.Scan(
		&txn.ID,
		&txn.OwnerID,
		&txn.JobID,
		&date,
		&txn.Description,
		&txn.MerchantName,
		&amount,
		&txn.Category,
		&txn.Subcategory,
		&txn.Fingerprint,
		&source,
		&txn.SourceIdentifier,
		&status,
		&txn.MatchedDocumentID,
		&txn.SyncVersion,
		&lastSyncedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Date, err = time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("invalid stored date %q: %w", date, err)
	}
	txn.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}
	txn.Source = model.TransactionSource(source)
	txn.Status = model.ReconciliationStatus(status)
	if lastSyncedAt.Valid {
		txn.LastSyncedAt = &lastSyncedAt.Time
	}

	return &txn, nil
}

func (s *SQLiteStorage) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, *txn)
	}

	return txns, rows.Err()
}
