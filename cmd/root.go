// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/procsniff/internal/config"
	"firestige.xyz/procsniff/internal/log"
)

var (
	// Global flags
	configFile string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "procsniff",
	Short: "procsniff - per-process packet capture",
	Long: `procsniff captures network traffic on a local interface and keeps only the
packets that belong to a chosen process or application.

A target is selected by pid or by process name. Its open TCP and UDP sockets
define the port pairs a packet must match. Matching packets are decoded
(Ethernet, IPv4/IPv6, TCP/UDP) and kept in memory for the session.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// closeLog releases log file outputs once the command has finished.
var closeLog = log.Close

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Log outputs are closed whether or not the command failed.
func Execute() error {
	defer closeLog()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and PROCSNIFF_* environment when empty)")

	rootCmd.AddCommand(appsCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(validateCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := log.Init(loaded.Log); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	cfg = loaded
	return nil
}
