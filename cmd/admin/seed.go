package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jobcompass/internal/database"
	"jobcompass/internal/search"
)

// defaultBoards are the well-known job boards searched through the provider index.
var defaultBoards = []database.Board{
	{
		Name:                 "LinkedIn Jobs",
		URL:                  "https://www.linkedin.com/jobs/",
		Type:                 search.TypeTavily,
		Description:          "Professional networking platform with job listings across all industries.",
		SearchFrequencyHours: 6,
	},
	{
		Name:                 "Indeed",
		URL:                  "https://www.indeed.com/",
		Type:                 search.TypeTavily,
		Description:          "Large job search engine with listings worldwide.",
		SearchFrequencyHours: 4,
	},
	{
		Name:                 "Glassdoor",
		URL:                  "https://www.glassdoor.com/Jobs/",
		Type:                 search.TypeTavily,
		Description:          "Job listings with company reviews and salary information.",
		SearchFrequencyHours: 8,
	},
	{
		Name:                 "Remote OK",
		URL:                  "https://remoteok.com/",
		Type:                 search.TypeBrightData,
		Description:          "Remote-only jobs in engineering, design and marketing.",
		SearchFrequencyHours: 12,
	},
	{
		Name:                 "We Work Remotely",
		URL:                  "https://weworkremotely.com/",
		Type:                 search.TypeTavily,
		Description:          "Job board dedicated to remote work across all industries.",
		SearchFrequencyHours: 6,
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed-boards",
	Short: "Create the default job boards that do not exist yet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, zl, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		defer zl.Sync() //nolint:errcheck

		created := 0
		for _, tmpl := range defaultBoards {
			board := tmpl
			board.IsActive = true
			ok, err := a.Store.Boards.EnsureByName(ctx, &board)
			if err != nil {
				return fmt.Errorf("seed board %q: %w", board.Name, err)
			}
			if ok {
				created++
				zl.Info("board created", zap.String("name", board.Name), zap.Uint("id", board.ID))
			} else {
				zl.Debug("board already present", zap.String("name", board.Name))
			}
		}

		fmt.Printf("%d of %d default boards created\n", created, len(defaultBoards))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
