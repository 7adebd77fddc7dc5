package sheetsync

import (
	"fmt"

	"github.com/pennyworth/tally/internal/model"
)

// The mirror uses a fixed 8-column layout. The fingerprint lives in the
// last column and is the index key: it must be written to and read from
// the same column, always.
const (
	firstColumn       = "A"
	lastColumn        = "H"
	fingerprintColumn = "H"

	// headerRows is the number of rows above the first data row.
	headerRows = 1
)

// Header is the header row written when a tab is first created.
var Header = []any{
	"Date",
	"Description",
	"Amount",
	"Category",
	"Subcategory",
	"Confidence",
	"Status",
	"Fingerprint",
}

// encodeRow renders one transaction as a sheet row in the fixed layout:
// date, description, amount, category, subcategory, confidence, status,
// fingerprint.
func encodeRow(txn *model.Transaction) []any {
	return []any{
		txn.Date.Format("2006-01-02"),
		txn.Description,
		txn.Amount.StringFixed(2),
		txn.Category,
		txn.Subcategory,
		confidencePercent(txn),
		statusLabel(txn.Status),
		txn.Fingerprint,
	}
}

func confidencePercent(txn *model.Transaction) string {
	if txn.Status == model.StatusMatched {
		return "100%"
	}
	return ""
}

func statusLabel(status model.ReconciliationStatus) string {
	if status == model.StatusMatched {
		return "Matched"
	}
	return "Unreconciled"
}

// rowRange returns the A1 range covering a run of rows starting at the
// given 1-based row number.
func rowRange(tab string, startRow, count int) string {
	return fmt.Sprintf("%s!%s%d:%s%d", tab, firstColumn, startRow, lastColumn, startRow+count-1)
}
