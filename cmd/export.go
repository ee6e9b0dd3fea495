package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newExportCommand() *cobra.Command {
	var out string

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the corpus as training data (JSON).",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openDatabase()
			if err != nil {
				return err
			}

			data, err := db.ExportTrainingData()
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("failed to write export to %s: %w", out, err)
			}
			return nil
		},
	}

	exportCmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return exportCmd
}
