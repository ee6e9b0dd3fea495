package cmd

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/agentdb/internal/observability"
	"github.com/xkilldash9x/agentdb/internal/warehouse"
)

func newMirrorCommand() *cobra.Command {
	var instance string

	mirrorCmd := &cobra.Command{
		Use:   "mirror",
		Short: "Mirror the corpus into the analytics warehouse (Postgres).",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg.Warehouse.Enabled {
				return fmt.Errorf("warehouse is disabled; set warehouse.enabled and AGENTDB_WAREHOUSE_URL")
			}

			db, _, err := openDatabase()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, cfg.Warehouse.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to warehouse: %w", err)
			}
			defer pool.Close()

			wh, err := warehouse.New(ctx, pool, observability.GetLogger())
			if err != nil {
				return err
			}
			if err := wh.EnsureSchema(ctx); err != nil {
				return err
			}

			patterns := db.Patterns()
			if err := wh.MirrorPatterns(ctx, instance, patterns); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "mirrored %d patterns as instance %q\n", len(patterns), instance)
			return nil
		},
	}

	mirrorCmd.Flags().StringVar(&instance, "instance", "default", "instance name for this corpus in the warehouse")
	return mirrorCmd
}
