package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/hybridqa"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of hybridqa",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hybridqa version %s\n", strings.TrimSpace(hybridqa.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
