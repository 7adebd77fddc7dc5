package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pennyworth/tally/internal/ingest"
)

func documentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "Manage invoices and receipts",
	}

	cmd.AddCommand(documentsImportCmd())
	cmd.AddCommand(documentsListCmd())

	return cmd
}

func documentsImportCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import documents from a CSV file (vendor,total[,date])",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ownerID, err := requireOwner(owner)
			if err != nil {
				return err
			}

			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer func() { _ = file.Close() }()

			docs, err := ingest.ParseDocumentsCSV(file)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Println("No documents found in file.")
				return nil
			}
			for i := range docs {
				docs[i].OwnerID = ownerID
			}

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.SaveDocuments(ctx, docs); err != nil {
				return err
			}

			fmt.Printf("Saved %d documents.\n", len(docs))
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id the documents belong to")

	return cmd
}

func documentsListCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List unreconciled documents",
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

			docs, err := store.UnreconciledDocuments(ctx, ownerID)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Println("No unreconciled documents.")
				return nil
			}

			fmt.Printf("%-36s  %-10s  %10s  %s\n", "ID", "DATE", "TOTAL", "VENDOR")
			for _, doc := range docs {
				date := ""
				if doc.DocumentDate != nil {
					date = doc.DocumentDate.Format("2006-01-02")
				}
				fmt.Printf("%-36s  %-10s  %10s  %s\n",
					doc.ID, date, doc.TotalAmount.StringFixed(2), doc.VendorName)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id to list documents for")

	return cmd
}
