// Package cmd holds the mcp-registry CLI's subcommands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var seedPath string

var rootCmd = &cobra.Command{
	Use:   "mcp-registry",
	Short: "Registry and gateway for Model Context Protocol servers",
	Long: `mcp-registry discovers and persists MCP servers' capabilities and
proxies tool/resource/prompt calls to them over a pooled connection.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), seedPath)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&seedPath, "seed", "", "path to a seed file of servers to auto-register")
	rootCmd.AddCommand(newVerifyCmd())
}

// Execute runs the root command; main.main calls this and exits non-zero on
// failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
