package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func jobsCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List ingestion jobs",
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

			jobs, err := store.ListJobs(ctx, ownerID)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Println("No jobs found.")
				return nil
			}

			fmt.Printf("%-36s  %-19s  %-13s  %-9s  %8s  %7s  %6s  %s\n",
				"ID", "CREATED", "SOURCE", "STATUS", "INSERTED", "SKIPPED", "ERRORS", "FILE")
			for _, job := range jobs {
				fmt.Printf("%-36s  %-19s  %-13s  %-9s  %8d  %7d  %6d  %s\n",
					job.ID,
					job.CreatedAt.Format("2006-01-02 15:04:05"),
					job.Source,
					job.Status,
					job.Inserted,
					job.Skipped,
					job.ErrorCount,
					job.FileName)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id to list jobs for")

	return cmd
}
