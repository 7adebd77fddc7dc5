package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/pennyworth/tally/internal/service"
)

// Client implements service.SheetAPI against the Google Sheets API.
type Client struct {
	service *sheets.Service
	logger  *slog.Logger
}

// NewClient creates an authenticated Google Sheets client.
func NewClient(ctx context.Context, config Config, logger *slog.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{service: srv, logger: logger}, nil
}

// createSheetsService builds the underlying API service from either
// service-account or OAuth2 refresh-token credentials.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		oauthConfig := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}

		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}

		tokenSource = oauthConfig.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// BatchGet reads multiple ranges with a single API call.
func (c *Client) BatchGet(ctx context.Context, spreadsheetID string, ranges []string) ([]service.ValueRange, error) {
	resp, err := c.service.Spreadsheets.Values.BatchGet(spreadsheetID).
		Ranges(ranges...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("batch get failed: %w", err)
	}

	result := make([]service.ValueRange, 0, len(resp.ValueRanges))
	for _, vr := range resp.ValueRanges {
		result = append(result, service.ValueRange{
			Range:  vr.Range,
			Values: vr.Values,
		})
	}

	return result, nil
}

// BatchUpdate writes multiple ranges with a single API call. Values are
// written RAW so amount strings are not reinterpreted by the sheet.
func (c *Client) BatchUpdate(ctx context.Context, spreadsheetID string, data []service.ValueRange) error {
	valueRanges := make([]*sheets.ValueRange, 0, len(data))
	for _, vr := range data {
		valueRanges = append(valueRanges, &sheets.ValueRange{
			Range:  vr.Range,
			Values: vr.Values,
		})
	}

	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             valueRanges,
	}

	_, err := c.service.Spreadsheets.Values.BatchUpdate(spreadsheetID, req).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("batch update failed: %w", err)
	}

	return nil
}

// Append adds rows after the last populated row of the range's table.
func (c *Client) Append(ctx context.Context, spreadsheetID, rangeA1 string, rows [][]any) error {
	valueRange := &sheets.ValueRange{Values: rows}

	_, err := c.service.Spreadsheets.Values.Append(spreadsheetID, rangeA1, valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append failed: %w", err)
	}

	return nil
}

// EnsureTab creates the named tab with a header row when it does not
// exist yet. Already-existing tabs are left untouched.
func (c *Client) EnsureTab(ctx context.Context, spreadsheetID, tab string, header []any) error {
	spreadsheet, err := c.service.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to access spreadsheet %s: %w", spreadsheetID, err)
	}

	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == tab {
			return nil
		}
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: tab},
				},
			},
		},
	}
	if _, err := c.service.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("unable to create tab %s: %w", tab, err)
	}

	if len(header) > 0 {
		headerRange := fmt.Sprintf("%s!A1", tab)
		if err := c.BatchUpdate(ctx, spreadsheetID, []service.ValueRange{{Range: headerRange, Values: [][]any{header}}}); err != nil {
			return fmt.Errorf("unable to write header row: %w", err)
		}
	}

	c.logger.Info("created sheet tab", "spreadsheet", spreadsheetID, "tab", tab)

	return nil
}
