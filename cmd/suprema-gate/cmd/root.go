// Package cmd provides the CLI commands for the gateway.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ridgeline-io/datagate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "suprema-gate",
	Short: "Authenticated rate-limited gateway over a read-only data store",
	Long: `suprema-gate fronts a read-only tabular data store with bearer-token
authentication and a hierarchical rate-limit / manual-block engine.

Quick start:
  1. Create a config file: datagate.yaml (optional — env vars work too)
  2. Run: suprema-gate serve

Configuration:
  Config is loaded from datagate.yaml in the current directory,
  $HOME/.datagate/, or /etc/datagate/.

  Every setting can also be set via an environment variable matching its
  flat key, uppercased: DATABASE_URL, POLICY_DATABASE_URL, REDIS_URL, ...`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./datagate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
