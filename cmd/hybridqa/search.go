package main

import (
	"strings"

	"github.com/aretw0/hybridqa/internal/cli"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Show the document chunks most similar to a text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("k")

		app, ctx, cleanup, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		return cli.Search(ctx, app, cmd.OutOrStdout(), strings.Join(args, " "), k)
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntP("k", "k", 0, "Number of chunks (0 uses the config value)")
}
