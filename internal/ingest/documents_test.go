package ingest

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennyworth/tally/internal/model"
)

func TestParseDocumentsCSV(t *testing.T) {
	input := `vendor,total,date
Tesco,45.30,2025-03-11
British Gas,89.00,
`

	docs, err := ParseDocumentsCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "Tesco", docs[0].VendorName)
	assert.True(t, decimal.RequireFromString("45.30").Equal(docs[0].TotalAmount))
	require.NotNil(t, docs[0].DocumentDate)
	assert.Equal(t, "2025-03-11", docs[0].DocumentDate.Format("2006-01-02"))
	assert.Equal(t, model.StatusUnreconciled, docs[0].Status)
	assert.NotEmpty(t, docs[0].ID)

	assert.Equal(t, "British Gas", docs[1].VendorName)
	assert.Nil(t, docs[1].DocumentDate, "the date column may be empty")
}

func TestParseDocumentsCSV_TotalsAreUnsigned(t *testing.T) {
	docs, err := ParseDocumentsCSV(strings.NewReader("Tesco,-45.30\n"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.True(t, decimal.RequireFromString("45.30").Equal(docs[0].TotalAmount))
}

func TestParseDocumentsCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		errPart string
	}{
		{
			name:    "too few columns",
			input:   "Tesco\n",
			errPart: "expected at least 2 columns",
		},
		{
			name:    "bad total past the header row",
			input:   "vendor,total\nTesco,lots\n",
			errPart: "invalid total",
		},
		{
			name:    "bad date",
			input:   "Tesco,45.30,someday\n",
			errPart: "invalid date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDocumentsCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}
