package main

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"jobcompass/internal/storage"
)

var errNoStorage = errors.New("object storage is not configured (MINIO_ENDPOINT is empty)")

var archivesCmd = &cobra.Command{
	Use:   "archives",
	Short: "Inspect or prune the raw search batches kept in object storage",
}

var archivesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived batches of a board",
	RunE: func(cmd *cobra.Command, _ []string) error {
		boardID, _ := cmd.Flags().GetUint("board")
		limit, _ := cmd.Flags().GetInt("limit")
		if boardID == 0 {
			return errors.New("--board is required")
		}

		ctx := cmd.Context()
		a, zl, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		defer zl.Sync() //nolint:errcheck

		if a.Storage == nil {
			return errNoStorage
		}
		objects, err := a.Storage.ListObjects(ctx, storage.BoardPrefix(boardID), limit)
		if err != nil {
			return err
		}
		for _, o := range objects {
			batch := "-"
			if _, id, ok := storage.ParseArchiveKey(o.Key); ok {
				batch = id
			}
			fmt.Printf("%s\t%d\t%s\t%s\n", batch, o.Size, o.LastModified.Format("2006-01-02 15:04:05"), o.Key)
		}
		fmt.Printf("%d objects\n", len(objects))
		return nil
	},
}

var archivesPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete every archived batch of a board",
	RunE: func(cmd *cobra.Command, _ []string) error {
		boardID, _ := cmd.Flags().GetUint("board")
		yes, _ := cmd.Flags().GetBool("yes")
		if boardID == 0 {
			return errors.New("--board is required")
		}

		if !yes {
			prompt := promptui.Prompt{
				Label:     fmt.Sprintf("Delete all archives of board %d", boardID),
				IsConfirm: true,
			}
			if _, err := prompt.Run(); err != nil {
				// promptui returns ErrAbort when the answer is not "y"
				fmt.Println("aborted")
				return nil
			}
		}

		ctx := cmd.Context()
		a, zl, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		defer zl.Sync() //nolint:errcheck

		if a.Storage == nil {
			return errNoStorage
		}
		deleted, err := a.Storage.DeletePrefix(ctx, storage.BoardPrefix(boardID))
		if err != nil {
			return err
		}
		fmt.Printf("%d objects deleted\n", deleted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archivesCmd)
	archivesCmd.AddCommand(archivesListCmd, archivesPruneCmd)

	archivesCmd.PersistentFlags().UintP("board", "b", 0, "board id")
	archivesListCmd.Flags().IntP("limit", "l", 50, "maximum number of objects to list")
	archivesPruneCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}
