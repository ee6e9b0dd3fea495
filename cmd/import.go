package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newImportCommand() *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import exported training data, assigning fresh ids.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			db, dir, err := openDatabase()
			if err != nil {
				return err
			}

			imported, importErr := db.ImportTrainingData(data)
			// Patterns appended before a capacity error are worth keeping.
			if imported > 0 {
				if err := db.Save(dir); err != nil {
					return err
				}
			}
			if importErr != nil {
				return importErr
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d patterns\n", imported)
			return nil
		},
	}
	return importCmd
}
