// Package cmd provides the privd daemon's CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/privd/privd/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "privd",
	Short: "privd - policy decision daemon",
	Long: `privd is a policy decision point: it answers CHECK requests against a
bucketed policy store over UNIX domain sockets, with pluggable
non-terminal policy types that can round-trip through an agent before
answering.

Configuration is loaded from privd.yaml in the current directory,
$HOME/.privd/, or /etc/privd/.

Environment variables can override config values with the PRIVD_ prefix.
Example: PRIVD_STORAGE_DIR=/var/lib/privd/db

Commands:
  start     Start the daemon
  version   Print version information`,
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./privd.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
