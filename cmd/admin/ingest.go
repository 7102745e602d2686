package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jobcompass/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion for a board synchronously",
	RunE: func(cmd *cobra.Command, _ []string) error {
		boardID, _ := cmd.Flags().GetUint("board")
		criteriaID, _ := cmd.Flags().GetUint("criteria")
		query, _ := cmd.Flags().GetString("query")
		maxResults, _ := cmd.Flags().GetInt("max-results")

		if boardID == 0 {
			return errors.New("--board is required")
		}
		if criteriaID == 0 && query == "" {
			return errors.New("one of --criteria or --query is required")
		}

		req := ingest.Request{BoardID: boardID, Query: query, MaxResults: maxResults}
		if criteriaID != 0 {
			req.CriteriaID = &criteriaID
		}

		ctx := cmd.Context()
		a, zl, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		defer zl.Sync() //nolint:errcheck

		report, err := a.Ingest.Run(ctx, req)
		if err != nil {
			return err
		}

		run := report.Run
		zl.Info("ingestion finished",
			zap.Uint("ingest_run_id", run.ID),
			zap.String("status", run.Status),
			zap.String("archive_key", run.ArchiveKey),
		)
		fmt.Printf("run %d: fetched=%d normalized=%d skipped=%d duplicates=%d persisted=%d\n",
			run.ID, run.Fetched, run.Normalized, run.Skipped, run.Duplicates, run.Persisted)
		for _, l := range report.Listings {
			fmt.Printf("  #%d %s / %s / %s\n", l.ID, l.Title, l.CompanyName, l.URL)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().UintP("board", "b", 0, "board id to ingest")
	ingestCmd.Flags().UintP("criteria", "c", 0, "search criteria id used to build the query")
	ingestCmd.Flags().StringP("query", "q", "", "raw query, overrides the criteria text")
	ingestCmd.Flags().Int("max-results", 0, "provider result limit (default from config)")
}
