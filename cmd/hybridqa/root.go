package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aretw0/hybridqa/internal/cli"
	"github.com/aretw0/hybridqa/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hybridqa",
	Short: "hybridqa answers retail analytics questions from documents and SQL",
	Long: `hybridqa routes each question to document retrieval, SQL generation or both,
runs a bounded repair loop on failures and produces a typed answer with citations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to the hybridqa config file")
	rootCmd.PersistentFlags().String("log-level", "", "Override the log level (debug, info, warn, error)")
}

// loadConfig resolves the config file and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Resolve(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// loadApp builds the stack under a signal-aware context.
// The caller must call the returned cleanup.
func loadApp(cmd *cobra.Command) (*cli.App, *cli.SignalContext, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx := cli.NewSignalContext(cmd.Context())
	app, err := cli.New(ctx, cfg)
	if err != nil {
		ctx.Cancel()
		return nil, nil, nil, err
	}
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.Close(shutdownCtx); err != nil {
			app.Logger.Warn("Shutdown incomplete", "err", err)
		}
		ctx.Cancel()
	}
	return app, ctx, cleanup, nil
}
