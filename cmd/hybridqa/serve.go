package main

import (
	"os"
	"strings"

	"github.com/aretw0/hybridqa"
	"github.com/aretw0/hybridqa/internal/cli"
	"github.com/aretw0/hybridqa/internal/presentation/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Exposes asking, stored runs, document search, the workflow graph, live events and metrics over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ctx, cleanup, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		addr := app.Config.Server.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}

		if term.IsTerminal(int(os.Stdout.Fd())) {
			tui.PrintBanner(cmd.OutOrStdout())
		}
		return cli.Serve(ctx, app, addr, strings.TrimSpace(hybridqa.Version))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
}
