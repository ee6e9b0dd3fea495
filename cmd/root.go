// Package cmd wires the agentdb command line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentdb/internal/agentdb"
	"github.com/xkilldash9x/agentdb/internal/config"
	"github.com/xkilldash9x/agentdb/internal/observability"
	"github.com/xkilldash9x/agentdb/internal/vectorindex"
)

var (
	cfgFile string
	dataDir string
	cfg     *config.Config
)

var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// NewRootCommand builds a fresh command tree. Each invocation gets its own
// instance so flag state never leaks between runs.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "agentdb",
		Short:   "agentdb is a shared action-pattern store for browser automations.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := initializeConfig()
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "agentdb"})
				return err
			}
			cfg = loaded
			if dataDir != "" {
				cfg.Store.DataDir = dataDir
			}
			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting agentdb.", zap.String("version", Version))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "database directory (default is ~/.agentdb)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(
		newRecordCommand(),
		newQueryCommand(),
		newStatsCommand(),
		newExportCommand(),
		newImportCommand(),
		newReindexCommand(),
		newWatchCommand(),
		newMirrorCommand(),
		newReplayCommand(),
		newVersionCommand(),
	)
	return rootCmd
}

// Execute runs the CLI with the given context.
func Execute(ctx context.Context) error {
	defer observability.Sync()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		return err
	}
	return nil
}

// initializeConfig reads the config file and AGENTDB_* environment
// variables into a validated Config.
func initializeConfig() (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("AGENTDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars apply.
	}
	return config.NewConfigFromViper(v)
}

// openDatabase loads the store from the resolved data directory.
func openDatabase() (*agentdb.Database, string, error) {
	dir, err := cfg.ResolveDataDir()
	if err != nil {
		return nil, "", err
	}
	db, err := agentdb.Load(dir, storeConfig(), nil, observability.GetLogger())
	if err != nil {
		return nil, "", fmt.Errorf("failed to load database from %s: %w", dir, err)
	}
	return db, dir, nil
}

func storeConfig() agentdb.Config {
	return agentdb.Config{
		Index: vectorindex.Config{
			Capacity: cfg.Store.Capacity,
			M:        cfg.Store.Index.M,
			EfSearch: cfg.Store.Index.EfSearch,
			Ml:       cfg.Store.Index.Ml,
		},
	}
}

// printJSON renders a value as indented JSON on the command's stdout.
func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := jsonCodec.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// ExitCode maps an Execute error to a process exit code. A canceled context
// is a graceful shutdown, not a failure.
func ExitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	return 1
}
