package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/agentdb/internal/journal"
	"github.com/xkilldash9x/agentdb/internal/observability"
)

func newWatchCommand() *cobra.Command {
	var (
		journalPath string
		fromStart   bool
	)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a JSONL action journal and ingest its entries.",
		Long: `Follow a JSONL journal written by out-of-process automation engines and
append every entry to the store. The database is saved when the watch ends,
so run this as the designated writer for a shared data directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jcfg := cfg.Journal
			if journalPath != "" {
				jcfg.Path = journalPath
			}
			if cmd.Flags().Changed("from-start") {
				jcfg.FromStart = fromStart
			}

			db, dir, err := openDatabase()
			if err != nil {
				return err
			}

			watcher, err := journal.NewWatcher(jcfg, db, observability.GetLogger())
			if err != nil {
				return err
			}

			runErr := watcher.Run(cmd.Context())
			if err := db.Save(dir); err != nil {
				return err
			}
			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				return runErr
			}
			return nil
		},
	}

	watchCmd.Flags().StringVar(&journalPath, "journal", "", "journal file to follow (overrides config)")
	watchCmd.Flags().BoolVar(&fromStart, "from-start", false, "replay the whole journal instead of only new lines")
	return watchCmd
}
