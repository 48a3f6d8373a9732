package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/habat-tech/todrive/internal/app"
	"github.com/habat-tech/todrive/internal/config"
	"github.com/habat-tech/todrive/internal/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// Persistent flags, bound in newRootCmd.
var (
	flagConfigPath string
	flagEnvFile    string
	flagVerbose    bool
	flagDevMode    bool
)

// resolvedCfg holds the configuration loaded by PersistentPreRunE.
var resolvedCfg *config.Config

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "todrive",
		Short:         "Relay Telegram video attachments to Google Drive",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path (default todrive.toml when present)")
	cmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", config.DefaultEnvFile, "dotenv file to read")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVar(&flagDevMode, "dev", false, "use the in-memory Drive adapter and env-only secrets")

	cmd.AddCommand(newPollCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// loadConfig applies CLI flags on top of the file and environment layers.
func loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(config.LoadOptions{
		ConfigPath: flagConfigPath,
		EnvFile:    flagEnvFile,
	})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if flagVerbose {
		cfg.Log.Level = "debug"
	}
	if cmd.Flags().Changed("dev") {
		cfg.DevMode = flagDevMode
	}
	resolvedCfg = cfg
	return nil
}

// buildApp sets up logging and wires the application.
func buildApp(ctx context.Context, opts ...app.Option) (*app.App, *slog.Logger, error) {
	logger, err := logging.Setup(resolvedCfg.Log)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.NewApp(ctx, resolvedCfg, logger, opts...)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}
