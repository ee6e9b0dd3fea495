package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/agentdb/internal/autopilot"
	"github.com/xkilldash9x/agentdb/internal/observability"
)

func newReplayCommand() *cobra.Command {
	replayCmd := &cobra.Command{
		Use:   "replay <plan.json>",
		Short: "Replay an action plan in a browser, consulting the store for selectors.",
		Long: `Replay a JSON action plan against a headless browser. Steps without a
selector use the store's best-ranked suggestion; every step's outcome is
recorded back, so replays keep improving the corpus they draw from.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read plan %s: %w", args[0], err)
			}
			var actions []autopilot.Action
			if err := jsonCodec.Unmarshal(data, &actions); err != nil {
				return fmt.Errorf("failed to parse plan %s: %w", args[0], err)
			}

			db, dir, err := openDatabase()
			if err != nil {
				return err
			}

			pilot := autopilot.New(cfg.Autopilot, db, observability.GetLogger())
			runErr := pilot.Run(cmd.Context(), actions)

			// Outcomes recorded before a failure are still worth keeping.
			if err := db.Save(dir); err != nil {
				return err
			}
			return runErr
		},
	}
	return replayCmd
}
