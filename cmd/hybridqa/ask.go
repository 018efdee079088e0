package main

import (
	"strings"

	"github.com/aretw0/hybridqa/internal/cli"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		hint, _ := cmd.Flags().GetString("format")
		jsonMode, _ := cmd.Flags().GetBool("json")
		plain, _ := cmd.Flags().GetBool("plain")

		app, ctx, cleanup, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		return cli.AskOne(ctx, app, cmd.OutOrStdout(), strings.Join(args, " "), cli.AskOptions{
			ID:         id,
			FormatHint: hint,
			JSON:       jsonMode,
			Plain:      plain,
		})
	},
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().String("id", "", "Run identifier (generated when empty)")
	askCmd.Flags().String("format", "", "Expected answer format, e.g. int, float, list[{product:str, revenue:float}]")
	askCmd.Flags().Bool("json", false, "Print the run record as JSON")
	askCmd.Flags().Bool("plain", false, "Print markdown without terminal styling")
}
