package main

import (
	"fmt"
	"log/slog"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pennyworth/tally/internal/common"
	"github.com/pennyworth/tally/internal/model"
	"github.com/pennyworth/tally/internal/sheets"
	"github.com/pennyworth/tally/internal/sheetsync"
)

func syncCmd() *cobra.Command {
	var (
		owner         string
		spreadsheetID string
		tab           string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push transactions to the spreadsheet mirror",
		Long: `Reads the destination tab's fingerprint index, updates rows already
present, appends the rest, and retries rate-limited calls with backoff.
The spreadsheet is an eventually-consistent mirror, not a source of truth.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			ownerID, err := requireOwner(owner)
			if err != nil {
				return err
			}

			config := sheets.Config{
				ClientID:           viper.GetString("sheets.client_id"),
				ClientSecret:       viper.GetString("sheets.client_secret"),
				RefreshToken:       viper.GetString("sheets.refresh_token"),
				ServiceAccountPath: viper.GetString("sheets.service_account_path"),
				SpreadsheetID:      viper.GetString("sheets.spreadsheet_id"),
			}
			if spreadsheetID != "" {
				config.SpreadsheetID = spreadsheetID
			}
			if config.SpreadsheetID == "" {
				return common.NewUserError("no spreadsheet specified: pass --spreadsheet or set sheets.spreadsheet_id in config", common.ErrMissingConfig)
			}

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			txns, err := store.TransactionsByOwner(ctx, ownerID)
			if err != nil {
				return err
			}
			if len(txns) == 0 {
				fmt.Println("No transactions to sync.")
				return nil
			}

			client, err := sheets.NewClient(ctx, config, slog.Default())
			if err != nil {
				return err
			}

			if err := client.EnsureTab(ctx, config.SpreadsheetID, tab, sheetsync.Header); err != nil {
				return err
			}

			engine := sheetsync.NewEngine(client, store, slog.Default())

			var bar *progressbar.ProgressBar
			engine.OnChunk = func(done, total int) {
				if bar == nil {
					bar = progressbar.Default(int64(total), "syncing")
				}
				_ = bar.Set(done)
			}

			result, err := engine.Sync(ctx, txns, sheetsync.Target{
				SpreadsheetID: config.SpreadsheetID,
				Tab:           tab,
			})
			if err != nil {
				return err
			}

			printSyncResult(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id to sync")
	cmd.Flags().StringVar(&spreadsheetID, "spreadsheet", "", "destination spreadsheet id")
	cmd.Flags().StringVar(&tab, "tab", "Transactions", "destination tab name")

	return cmd
}

func printSyncResult(result *model.SyncResult) {
	fmt.Printf("Updated:  %d\n", result.Updated)
	fmt.Printf("Appended: %d\n", result.Appended)
	if len(result.FailedFingerprints) > 0 {
		fmt.Printf("Failed:   %d rows\n", len(result.FailedFingerprints))
	}
	if len(result.Errors) > 0 {
		fmt.Printf("Errors:   %d (first: %s)\n", len(result.Errors), result.Errors[0])
	}
}
