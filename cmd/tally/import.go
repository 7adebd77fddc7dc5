package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pennyworth/tally/internal/dedup"
	"github.com/pennyworth/tally/internal/ingest"
	"github.com/pennyworth/tally/internal/merge"
	"github.com/pennyworth/tally/internal/model"
)

func importCmd() *cobra.Command {
	var (
		owner     string
		jobID     string
		source    string
		skipCheck bool
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import transactions from an OFX/QFX or CSV statement",
		Long: `Parses a statement file, fingerprints every transaction, skips rows
already stored for the owner, and inserts the remainder under a new
ingestion job.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ownerID, err := requireOwner(owner)
			if err != nil {
				return err
			}

			txnSource, err := parseSource(source)
			if err != nil {
				return err
			}

			txns, err := parseStatement(args[0])
			if err != nil {
				return err
			}
			if len(txns) == 0 {
				fmt.Println("No transactions found in file.")
				return nil
			}

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			detector := dedup.NewDetector(store, slog.Default())
			svc := merge.NewService(store, store, detector, slog.Default())

			result, err := svc.ProcessUpload(ctx, txns, merge.Options{
				OwnerID:            ownerID,
				Source:             txnSource,
				JobID:              jobID,
				FileName:           filepath.Base(args[0]),
				SkipDuplicateCheck: skipCheck,
			})
			if err != nil {
				return err
			}

			printMergeResult(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id the transactions belong to")
	cmd.Flags().StringVar(&jobID, "job", "", "attribute rows to an existing ingestion job")
	cmd.Flags().StringVar(&source, "source", string(model.SourceUpload), "transaction source (upload, external_sync, manual, api)")
	cmd.Flags().BoolVar(&skipCheck, "skip-duplicate-check", false, "insert everything without duplicate detection")

	return cmd
}

func parseSource(s string) (model.TransactionSource, error) {
	switch source := model.TransactionSource(s); source {
	case model.SourceUpload, model.SourceExternalSync, model.SourceManual, model.SourceAPI:
		return source, nil
	default:
		return "", fmt.Errorf("unknown source %q (expected upload, external_sync, manual or api)", s)
	}
}

func parseStatement(path string) ([]model.Transaction, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".ofx", ".qfx":
		return ingest.NewOFXParser().Parse(file)
	case ".csv":
		return ingest.ParseCSV(file)
	default:
		return nil, fmt.Errorf("unsupported file type %q (expected .ofx, .qfx or .csv)", filepath.Ext(path))
	}
}

func printMergeResult(result *model.MergeResult) {
	fmt.Printf("Mode:     %s\n", result.Mode)
	fmt.Printf("Job:      %s\n", result.JobID)
	fmt.Printf("Inserted: %d of %d\n", result.Inserted, result.Total)
	if result.Skipped > 0 {
		fmt.Printf("Skipped:  %d duplicates\n", result.Skipped)
	}
	if len(result.Errors) > 0 {
		fmt.Printf("Errors:   %d (first: %s)\n", len(result.Errors), result.Errors[0])
	}
}
