package main

import (
	"fmt"
	"time"

	"github.com/aretw0/hybridqa/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Answer a batch of questions",
	Long: `Reads questions from a JSON lines file ({"id", "question", "format_hint"})
and writes one output line per question, in input order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("batch")
		output, _ := cmd.Flags().GetString("out")
		workers, _ := cmd.Flags().GetInt("workers")
		resume, _ := cmd.Flags().GetBool("resume")

		app, ctx, cleanup, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		summary, err := cli.RunBatch(ctx, app, cli.BatchOptions{
			Input:   input,
			Output:  output,
			Workers: workers,
			Resume:  resume,
		})
		if err != nil {
			if sig := ctx.Signal(); sig != nil {
				return fmt.Errorf("interrupted by %v: %w", sig, err)
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Answered %d of %d questions (%d reused, %d failed) in %s -> %s\n",
			summary.Answered+summary.Reused, summary.Total, summary.Reused, summary.Failed,
			summary.Duration.Round(time.Millisecond), output)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("batch", "sample_questions.jsonl", "Input JSON lines file")
	runCmd.Flags().String("out", "outputs.jsonl", "Output JSON lines file")
	runCmd.Flags().Int("workers", 0, "Concurrent questions (0 uses the config value)")
	runCmd.Flags().Bool("resume", false, "Reuse answers stored for question IDs already processed")
}
