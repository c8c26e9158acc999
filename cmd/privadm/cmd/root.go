// Package cmd provides privadm's CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/privd/privd/internal/config"
)

var cfgFile string
var adminSocketFlag string

var rootCmd = &cobra.Command{
	Use:   "privadm",
	Short: "privadm - privd administrative CLI",
	Long: `privadm manages buckets and policies on a running privd daemon over its
admin socket (0600, same-host operators only), and offers offline
conveniences that need no running daemon: config inspection and a
hash-key helper.`,
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
	rootCmd.PersistentFlags().StringVar(&adminSocketFlag, "admin-socket", "", "admin socket path (default: from config)")
}

func initConfig() {
	config.InitViper(cfgFile)
}

// adminSocketPath resolves the admin socket path: --admin-socket flag,
// falling back to the loaded config's sockets.admin.path.
func adminSocketPath() (string, error) {
	if adminSocketFlag != "" {
		return adminSocketFlag, nil
	}
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return cfg.Sockets.Admin.Path, nil
}
