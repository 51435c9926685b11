// Package cmd wires the concierge CLI: the root command runs the gateway,
// subcommands cover version info and database migrations.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X github.com/hostalia/concierge/cmd.Version=..."
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "concierge",
	Short: "Hotel guest-messaging gateway",
	Long:  "Concierge receives guest messages over WhatsApp, coalesces them per conversation,\nroutes them through the assistant, and escalates to a hotel manager on Telegram.",
	Run: func(cmd *cobra.Command, args []string) {
		runGateway()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(migrateCmd())
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("concierge %s\n", Version)
	},
}

// resolveConfigPath returns the config file path: --config flag first,
// then CONCIERGE_CONFIG, then ./config.json.
func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("CONCIERGE_CONFIG"); v != "" {
		return v
	}
	return "config.json"
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
