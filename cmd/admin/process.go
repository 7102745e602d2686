package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"jobcompass/internal/matching"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the ingest and match pipeline for one profile or every active profile",
	RunE: func(cmd *cobra.Command, _ []string) error {
		profileID, _ := cmd.Flags().GetUint("profile")
		all, _ := cmd.Flags().GetBool("all")
		if (profileID == 0) == !all {
			return errors.New("exactly one of --profile or --all is required")
		}

		ctx := cmd.Context()
		a, zl, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		defer zl.Sync() //nolint:errcheck

		if all {
			summaries, err := a.Pipeline.ProcessAll(ctx)
			for _, s := range summaries {
				printSummary(s)
			}
			return err
		}

		summary, err := a.Pipeline.ProcessProfile(ctx, profileID)
		if err != nil {
			return err
		}
		printSummary(summary)
		return nil
	},
}

func printSummary(s *matching.Summary) {
	fmt.Printf("profile %d: runs=%v persisted=%d considered=%d matched=%d created=%d failures=%d\n",
		s.UserProfileID, s.IngestRunIDs, s.Persisted, s.Considered, s.Matched, s.Created, s.Failures)
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().UintP("profile", "p", 0, "user profile id")
	processCmd.Flags().BoolP("all", "a", false, "process every active profile")
}
