package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pennyworth/tally/internal/model"
)

// ParseCSV reads normalized transaction rows from a CSV file with the
// layout date,description,amount[,category[,subcategory]]. A header row
// is detected by a non-parsable date in the first cell and skipped.
func ParseCSV(reader io.Reader) ([]model.Transaction, error) {
	r := csv.NewReader(reader)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var transactions []model.Transaction
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

		if len(record) < 3 {
			return nil, fmt.Errorf("line %d: expected at least 3 columns, got %d", line, len(record))
		}

		date, err := parseDate(record[0])
		if err != nil {
			if line == 1 {
				// Header row.
				continue
			}
			return nil, fmt.Errorf("line %d: invalid date %q", line, record[0])
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(record[2]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid amount %q", line, record[2])
		}

		txn := model.Transaction{
			ID:          uuid.NewString(),
			Date:        date,
			Description: strings.TrimSpace(record[1]),
			Amount:      amount,
			Source:      model.SourceUpload,
			Status:      model.StatusUnreconciled,
		}
		if len(record) > 3 {
			txn.Category = strings.TrimSpace(record[3])
		}
		if len(record) > 4 {
			txn.Subcategory = strings.TrimSpace(record[4])
		}
		txn.ComputeFingerprint()

		transactions = append(transactions, txn)
	}

	return transactions, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "02/01/2006", "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}
