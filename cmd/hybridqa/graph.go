package main

import (
	"github.com/aretw0/hybridqa/internal/cli"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the workflow graph visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of the workflow, optionally highlighting the path of a stored run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, _ := cmd.Flags().GetString("run")
		validate, _ := cmd.Flags().GetBool("validate")

		app, ctx, cleanup, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		return cli.PrintGraph(ctx, app, cmd.OutOrStdout(), runID, validate)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)

	graphCmd.Flags().String("run", "", "Highlight the path of this stored run")
	graphCmd.Flags().Bool("validate", false, "Fail when nodes are missing or unreachable")
}
