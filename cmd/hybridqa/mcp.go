package main

import (
	"strings"

	"github.com/aretw0/hybridqa"
	"github.com/aretw0/hybridqa/internal/cli"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes ask, search_docs, describe_schema and get_graph as MCP tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")

		app, ctx, cleanup, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		app.Logger.Info("Starting MCP server", "transport", transport)
		return cli.ServeMCP(ctx, app, transport, addr, strings.TrimSpace(hybridqa.Version))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", ":8081", "Address to listen on (only for SSE)")
}
