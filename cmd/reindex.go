package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReindexCommand() *cobra.Command {
	var capacity int

	reindexCmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the vector index with a larger capacity.",
		Long: `Rebuild the vector index from all stored patterns with a new capacity.
Required once record or import starts failing with a capacity error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, dir, err := openDatabase()
			if err != nil {
				return err
			}

			if capacity <= db.Capacity() {
				return fmt.Errorf("new capacity %d must exceed the current capacity %d", capacity, db.Capacity())
			}
			if err := db.Reindex(capacity); err != nil {
				return err
			}
			if err := db.Save(dir); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "reindexed %d patterns into capacity %d\n", db.Len(), capacity)
			return nil
		},
	}

	reindexCmd.Flags().IntVar(&capacity, "capacity", 0, "new maximum element count")
	_ = reindexCmd.MarkFlagRequired("capacity")
	return reindexCmd
}
