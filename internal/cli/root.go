// Package cli implements the CityLink runtime's command-line interface
// using Cobra: a single "run" entrypoint that boots the device, plus a
// "config" helper that shows or initializes the on-disk configuration.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "citylink",
	Short: "CityLink — a Web-of-Things device runtime",
	Long: `CityLink is the device-side runtime kernel for network-connected
Things: it advertises a Thing Model over MQTT, dispatches inbound actions,
runs cooperative tasks, and accepts firmware delivered over the network.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml (defaults to $CITYLINK_HOME/config.toml)")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
