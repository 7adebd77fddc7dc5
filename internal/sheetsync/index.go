package sheetsync

import (
	"context"
	"fmt"

	"github.com/pennyworth/tally/internal/service"
)

// SheetIndex is an ephemeral snapshot of one tab's state: where each
// fingerprint currently lives and where the next appended row goes. It
// is rebuilt on every sync invocation and never persisted.
type SheetIndex struct {
	// Rows maps fingerprint -> 1-based row number.
	Rows map[string]int
	// NextRow is the row the first append will land on.
	NextRow int
	// RowCount is the populated row count at snapshot time, used to
	// detect concurrent writers before appending.
	RowCount int
}

// buildIndex snapshots the tab with a single batched read covering the
// fingerprint column and the first column (the latter to learn the
// current row count). Never one read per transaction.
func buildIndex(ctx context.Context, api service.SheetAPI, spreadsheetID, tab string) (*SheetIndex, error) {
	ranges := []string{
		fmt.Sprintf("%s!%s:%s", tab, fingerprintColumn, fingerprintColumn),
		fmt.Sprintf("%s!%s:%s", tab, firstColumn, firstColumn),
	}

	valueRanges, err := api.BatchGet(ctx, spreadsheetID, ranges)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet index: %w", err)
	}
	if len(valueRanges) < 2 {
		return nil, fmt.Errorf("expected 2 value ranges from index read, got %d", len(valueRanges))
	}

	index := &SheetIndex{Rows: make(map[string]int)}

	for i, row := range valueRanges[0].Values {
		if i < headerRows || len(row) == 0 {
			continue
		}
		fingerprint, ok := row[0].(string)
		if !ok || fingerprint == "" {
			continue
		}
		// First occurrence wins if the sheet somehow holds duplicates.
		if _, exists := index.Rows[fingerprint]; !exists {
			index.Rows[fingerprint] = i + 1
		}
	}

	index.RowCount = len(valueRanges[1].Values)
	index.NextRow = index.RowCount + 1

	return index, nil
}

// currentRowCount re-reads only the first column so appends can verify
// that no other writer has moved the append offset since the snapshot.
func currentRowCount(ctx context.Context, api service.SheetAPI, spreadsheetID, tab string) (int, error) {
	ranges := []string{fmt.Sprintf("%s!%s:%s", tab, firstColumn, firstColumn)}
	valueRanges, err := api.BatchGet(ctx, spreadsheetID, ranges)
	if err != nil {
		return 0, err
	}
	if len(valueRanges) == 0 {
		return 0, nil
	}
	return len(valueRanges[0].Values), nil
}
