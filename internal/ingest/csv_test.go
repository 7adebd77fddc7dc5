package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennyworth/tally/internal/model"
)

func TestParseCSV(t *testing.T) {
	input := `date,description,amount,category,subcategory
2025-03-10,TESCO STORES 1234,-45.30,Groceries,Food
2025-03-12,NETFLIX.COM,-15.99,Entertainment,
2025-03-25,SALARY ACME LTD,2500.00,,
`

	transactions, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, transactions, 3)

	tx1 := transactions[0]
	assert.Equal(t, "TESCO STORES 1234", tx1.Description)
	assert.True(t, decimal.RequireFromString("-45.30").Equal(tx1.Amount))
	assert.Equal(t, "2025-03-10", tx1.Date.Format("2006-01-02"))
	assert.Equal(t, "Groceries", tx1.Category)
	assert.Equal(t, "Food", tx1.Subcategory)
	assert.Equal(t, model.SourceUpload, tx1.Source)
	assert.Equal(t, model.StatusUnreconciled, tx1.Status)
	assert.NotEmpty(t, tx1.ID)
	assert.Equal(t, model.Fingerprint(tx1.Description, tx1.Amount, tx1.Date), tx1.Fingerprint)

	assert.Empty(t, transactions[1].Subcategory)
	assert.Empty(t, transactions[2].Category)
	assert.NotEqual(t, transactions[0].ID, transactions[1].ID)
}

func TestParseCSV_NoHeader(t *testing.T) {
	input := "2025-03-10,TESCO STORES 1234,-45.30\n"

	transactions, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, "TESCO STORES 1234", transactions[0].Description)
}

func TestParseCSV_DateFormats(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{
			name:  "iso date",
			input: "2025-03-10,shop,-1.00\n",
			want:  time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "day first",
			input: "25/03/2025,shop,-1.00\n",
			want:  time.Date(2025, 3, 25, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "month first when day-first cannot parse",
			input: "03/25/2025,shop,-1.00\n",
			want:  time.Date(2025, 3, 25, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transactions, err := ParseCSV(strings.NewReader(tt.input))
			require.NoError(t, err)
			require.Len(t, transactions, 1)
			assert.True(t, tt.want.Equal(transactions[0].Date))
		})
	}
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		errPart string
	}{
		{
			name:    "too few columns",
			input:   "2025-03-10,shop\n",
			errPart: "expected at least 3 columns",
		},
		{
			name:    "bad date past the header row",
			input:   "date,description,amount\nnot-a-date,shop,-1.00\n",
			errPart: "invalid date",
		},
		{
			name:    "bad amount",
			input:   "2025-03-10,shop,lots\n",
			errPart: "invalid amount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestParseCSV_Empty(t *testing.T) {
	transactions, err := ParseCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, transactions)
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	transactions, err := ParseCSV(strings.NewReader("date,description,amount\n"))
	require.NoError(t, err)
	assert.Empty(t, transactions)
}
