package storage

import (
	"context"
	"fmt"

	"github.com/pennyworth/tally/internal/model"
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context cannot be nil")
	}
	return ctx.Err()
}

func validateString(value, name string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	return nil
}

func validateTransactions(transactions []model.Transaction) error {
	for i := range transactions {
		txn := &transactions[i]
		if txn.ID == "" {
			return fmt.Errorf("transaction at index %d has no ID", i)
		}
		if txn.OwnerID == "" {
			return fmt.Errorf("transaction %s has no owner", txn.ID)
		}
		if txn.Date.IsZero() {
			return fmt.Errorf("transaction %s has no date", txn.ID)
		}
	}
	return nil
}

func validateDocuments(docs []model.Document) error {
	for i := range docs {
		if docs[i].ID == "" {
			return fmt.Errorf("document at index %d has no ID", i)
		}
		if docs[i].OwnerID == "" {
			return fmt.Errorf("document %s has no owner", docs[i].ID)
		}
	}
	return nil
}
