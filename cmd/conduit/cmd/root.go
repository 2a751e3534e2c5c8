// Package cmd provides the CLI commands for the conduit MCP server.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "conduit",
	Short: "Conduit - MCP server framework",
	Long: `Conduit serves the Model Context Protocol over WebSocket and HTTP
on a single endpoint, with per-session state, progress streaming, and
resource limits.

Quick start:
  1. Optionally create a config file: conduit.yaml
  2. Run: conduit serve

Configuration:
  Config is loaded from conduit.yaml in the current directory,
  $HOME/.conduit/, or /etc/conduit/.

  Environment variables override config values with the CONDUIT_ prefix.
  Example: CONDUIT_SERVER_ADDR=:9090 CONDUIT_LOG_FORMAT=json

Commands:
  serve       Start the MCP server with the example catalog
  config      Print the resolved configuration
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./conduit.yaml)")
}
