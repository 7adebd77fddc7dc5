package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		errPart string
	}{
		{
			name: "oauth credentials",
			config: Config{
				ClientID:     "id",
				ClientSecret: "secret",
				RefreshToken: "token",
			},
		},
		{
			name: "service account",
			config: Config{
				ServiceAccountPath: "/etc/tally/sa.json",
			},
		},
		{
			name:    "nothing configured",
			config:  Config{SpreadsheetID: "sheet-1"},
			errPart: "no authentication method configured",
		},
		{
			name: "partial oauth is not enough",
			config: Config{
				ClientID:     "id",
				ClientSecret: "secret",
			},
			errPart: "no authentication method configured",
		},
		{
			name: "both methods configured",
			config: Config{
				ClientID:           "id",
				ClientSecret:       "secret",
				RefreshToken:       "token",
				ServiceAccountPath: "/etc/tally/sa.json",
			},
			errPart: "multiple authentication methods",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.errPart == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errPart)
			}
		})
	}
}

func TestConfigLoadFromEnv(t *testing.T) {
	t.Setenv("TALLY_SHEETS_CLIENT_ID", "")
	t.Setenv("TALLY_SHEETS_CLIENT_SECRET", "")
	t.Setenv("TALLY_SHEETS_REFRESH_TOKEN", "")
	t.Setenv("TALLY_SHEETS_SERVICE_ACCOUNT_PATH", "/etc/tally/sa.json")
	t.Setenv("TALLY_SHEETS_SPREADSHEET_ID", "sheet-1")

	var config Config
	require.NoError(t, config.LoadFromEnv())
	assert.Equal(t, "/etc/tally/sa.json", config.ServiceAccountPath)
	assert.Equal(t, "sheet-1", config.SpreadsheetID)
}
