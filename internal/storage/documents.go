package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pennyworth/tally/internal/common"
	"github.com/pennyworth/tally/internal/model"
)

const documentColumns = `id, owner_id, vendor_name, total_amount, document_date, status, matched_transaction_id`

// SaveDocuments upserts the given documents.
func (s *SQLiteStorage) SaveDocuments(ctx context.Context, docs []model.Document) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDocuments(docs); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (
			id, owner_id, vendor_name, total_amount, document_date, status, matched_transaction_id
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			vendor_name = excluded.vendor_name,
			total_amount = excluded.total_amount,
			document_date = excluded.document_date
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range docs {
		doc := &docs[i]
		if doc.Status == "" {
			doc.Status = model.StatusUnreconciled
		}

		var docDate any
		if doc.DocumentDate != nil && !doc.DocumentDate.IsZero() {
			docDate = doc.DocumentDate.Format("2006-01-02")
		}

		_, err = stmt.ExecContext(ctx,
			doc.ID,
			doc.OwnerID,
			doc.VendorName,
			doc.TotalAmount.StringFixed(2),
			docDate,
			string(doc.Status),
			doc.MatchedTransactionID,
		)
		if err != nil {
			return fmt.Errorf("failed to save document %s: %w", doc.ID, err)
		}
	}

	return tx.Commit()
}

// UnreconciledDocuments returns the owner's documents not matched to a
// transaction yet.
func (s *SQLiteStorage) UnreconciledDocuments(ctx context.Context, ownerID string) ([]model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM documents WHERE owner_id = ? AND status = ? ORDER BY document_date, id`, documentColumns),
		ownerID, string(model.StatusUnreconciled))
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}

	return docs, rows.Err()
}

// GetDocument returns one document by id.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM documents WHERE id = ?`, documentColumns), id)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var doc model.Document
	var amount, status string
	var docDate sql.NullString

	err := row.Scan(
		&doc.ID,
		&doc.OwnerID,
		&doc.VendorName,
		&amount,
		&docDate,
		&status,
		&doc.MatchedTransactionID,
	)
	if err != nil {
		return nil, err
	}

	doc.TotalAmount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}
	doc.Status = model.ReconciliationStatus(status)
	if docDate.Valid && docDate.String != "" {
		parsed, err := time.Parse("2006-01-02", docDate.String)
		if err != nil {
			return nil, fmt.Errorf("invalid stored date %q: %w", docDate.String, err)
		}
		doc.DocumentDate = &parsed
	}

	return &doc, nil
}
