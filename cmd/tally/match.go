package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pennyworth/tally/internal/match"
	"github.com/pennyworth/tally/internal/storage"
)

func matchCmd() *cobra.Command {
	var (
		owner  string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Reconcile transactions against documents",
		Long: `Scores every unreconciled transaction against every unreconciled
document and links pairs that qualify at high confidence. With --dry-run,
prints the top candidates per transaction without linking anything.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			ownerID, err := requireOwner(owner)
			if err != nil {
				return err
			}

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			engine := match.NewEngine(store, store, slog.Default())

			if dryRun {
				return printCandidates(cmd, engine, store, ownerID)
			}

			result, err := engine.AutoMatch(ctx, ownerID)
			if err != nil {
				return err
			}

			fmt.Printf("Examined: %d\n", result.Examined)
			fmt.Printf("Linked:   %d\n", result.Linked)
			fmt.Printf("Skipped:  %d (no high-confidence candidate)\n", result.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id to reconcile")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print candidates without linking")

	return cmd
}

func printCandidates(cmd *cobra.Command, engine *match.Engine, store *storage.SQLiteStorage, ownerID string) error {
	ctx := cmd.Context()

	txns, err := store.UnreconciledTransactions(ctx, ownerID)
	if err != nil {
		return err
	}
	docs, err := store.UnreconciledDocuments(ctx, ownerID)
	if err != nil {
		return err
	}

	for i := range txns {
		candidates := engine.FindCandidatesForTransaction(&txns[i], docs)
		if len(candidates) == 0 {
			continue
		}
		fmt.Printf("%s  %s  %s\n", txns[i].Date.Format("2006-01-02"), txns[i].Amount.StringFixed(2), txns[i].DisplayName())
		for _, c := range candidates {
			fmt.Printf("    %-8s score=%5.1f amount_diff=%.2f days_diff=%d document=%s\n",
				c.Confidence, c.Score, c.AmountDiff, c.DaysDiff, c.OtherPartyID)
		}
	}

	return nil
}
