package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/pennyworth/tally/internal/service"
)

// MockSheetAPI is an in-memory implementation of service.SheetAPI for
// testing. It models a single tab as a dense grid of rows and records
// every call so tests can assert on batching behavior.
type MockSheetAPI struct {
	// Rows holds the tab contents, row 0 being sheet row 1.
	Rows [][]any

	// Per-call overrides. When set, the corresponding method returns the
	// override's error instead of mutating state. The function receives
	// the 1-based call number for that method.
	BatchGetErr    func(call int) error
	BatchUpdateErr func(call int) error
	AppendErr      func(call int) error

	BatchGetCalls    int
	BatchUpdateCalls int
	AppendCalls      int

	// AppendedBatches records the row count of each successful append.
	AppendedBatches []int

	mu sync.Mutex
}

// NewMockSheetAPI creates a mock with the given initial rows.
func NewMockSheetAPI(rows [][]any) *MockSheetAPI {
	return &MockSheetAPI{Rows: rows}
}

// BatchGet serves ranges out of the in-memory grid. Only whole-column
// ranges of a single column (the shapes the engine requests) are
// supported.
func (m *MockSheetAPI) BatchGet(_ context.Context, _ string, ranges []string) ([]service.ValueRange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.BatchGetCalls++
	if m.BatchGetErr != nil {
		if err := m.BatchGetErr(m.BatchGetCalls); err != nil {
			return nil, err
		}
	}

	result := make([]service.ValueRange, 0, len(ranges))
	for _, r := range ranges {
		col, err := singleColumn(r)
		if err != nil {
			return nil, err
		}
		var values [][]any
		for _, row := range m.Rows {
			if col < len(row) {
				values = append(values, []any{row[col]})
			} else {
				values = append(values, []any{})
			}
		}
		result = append(result, service.ValueRange{Range: r, Values: values})
	}

	return result, nil
}

// BatchUpdate writes value ranges into the grid in place.
func (m *MockSheetAPI) BatchUpdate(_ context.Context, _ string, data []service.ValueRange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.BatchUpdateCalls++
	if m.BatchUpdateErr != nil {
		if err := m.BatchUpdateErr(m.BatchUpdateCalls); err != nil {
			return err
		}
	}

	for _, vr := range data {
		startRow, err := rangeStartRow(vr.Range)
		if err != nil {
			return err
		}
		for i, row := range vr.Values {
			idx := startRow - 1 + i
			if idx >= len(m.Rows) {
				return fmt.Errorf("update past end of sheet: row %d of %d", idx+1, len(m.Rows))
			}
			m.Rows[idx] = row
		}
	}

	return nil
}

// Append adds rows at the end of the grid.
func (m *MockSheetAPI) Append(_ context.Context, _, _ string, rows [][]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AppendCalls++
	if m.AppendErr != nil {
		if err := m.AppendErr(m.AppendCalls); err != nil {
			return err
		}
	}

	m.Rows = append(m.Rows, rows...)
	m.AppendedBatches = append(m.AppendedBatches, len(rows))

	return nil
}

// RowCount returns the current number of populated rows.
func (m *MockSheetAPI) RowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Rows)
}

// singleColumn parses "Tab!H:H" style ranges into a 0-based column index.
func singleColumn(rangeA1 string) (int, error) {
	if i := strings.Index(rangeA1, "!"); i >= 0 {
		rangeA1 = rangeA1[i+1:]
	}
	parts := strings.SplitN(rangeA1, ":", 2)
	col := strings.TrimSpace(parts[0])
	if len(col) != 1 || col[0] < 'A' || col[0] > 'Z' {
		return 0, fmt.Errorf("unsupported range: %q", rangeA1)
	}
	return int(col[0] - 'A'), nil
}

// rangeStartRow parses "Tab!A5:H7" style ranges into the 1-based start row.
func rangeStartRow(rangeA1 string) (int, error) {
	if i := strings.Index(rangeA1, "!"); i >= 0 {
		rangeA1 = rangeA1[i+1:]
	}
	start := strings.SplitN(rangeA1, ":", 2)[0]
	digits := strings.TrimLeft(start, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	row, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("unsupported range: %q", rangeA1)
	}
	return row, nil
}
