package cmd

import (
	"github.com/spf13/cobra"
)

func newStatsCommand() *cobra.Command {
	var topN int

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Print corpus statistics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := openDatabase()
			if err != nil {
				return err
			}
			return printJSON(cmd, db.StatisticsTop(topN))
		},
	}

	statsCmd.Flags().IntVar(&topN, "top", 10, "number of top pattern groups to include")
	return statsCmd
}
