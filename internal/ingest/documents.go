package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pennyworth/tally/internal/model"
)

// ParseDocumentsCSV reads financial documents (invoices, receipts) from a
// CSV file with the layout vendor,total[,date]. Totals are unsigned
// magnitudes; the date column may be empty when the document is undated.
// A header row is detected by a non-parsable total in the second cell.
func ParseDocumentsCSV(reader io.Reader) ([]model.Document, error) {
	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var documents []model.Document
	line := 0

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		line++

		if len(record) < 2 {
			return nil, fmt.Errorf("line %d: expected at least 2 columns, got %d", line, len(record))
		}

		total, err := decimal.NewFromString(strings.TrimSpace(record[1]))
		if err != nil {
			if line == 1 {
				// Header row.
				continue
			}
			return nil, fmt.Errorf("line %d: invalid total %q", line, record[1])
		}

		doc := model.Document{
			ID:          uuid.NewString(),
			VendorName:  strings.TrimSpace(record[0]),
			TotalAmount: total.Abs(),
			Status:      model.StatusUnreconciled,
		}
		if len(record) > 2 && strings.TrimSpace(record[2]) != "" {
			date, err := parseDate(record[2])
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid date %q", line, record[2])
			}
			doc.DocumentDate = &date
		}

		documents = append(documents, doc)
	}

	return documents, nil
}
