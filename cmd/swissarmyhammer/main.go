package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time; "dev" covers local builds, mirroring the
// teacher's cmd/gh-aw version variable.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "swissarmyhammer",
	Short:   "Prompt and workflow MCP server with issue and memo storage",
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.SetOut(os.Stderr)
	rootCmd.AddCommand(newServeCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
