package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// cfgFlag holds the --config persistent flag value.
var cfgFlag string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "iotsim",
	Short: "Discrete-event simulator for MQTT-style IoT networks",
	Long: `iotsim simulates a publish/subscribe network of IoT devices over
BLE, Wi-Fi, and Zigbee radios against a central broker, with mobility,
duty cycling, energy accounting, and broker failover.

Scenarios are described in YAML. Runs are deterministic for a given
seed, so results are reproducible and comparable across parameter
changes.`,
	// No Run function here means 'iotsim' with no args prints help text.
	SilenceUsage:  true,
	SilenceErrors: true, // Errors are handled in Execute()
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFlag, "config", "",
		"path to the configuration file (default "+defaultConfigPath+")")
}

// configPath resolves the configuration file path.
// Precedence: --config flag, IOTSIM_CONFIG environment variable, default.
func configPath() string {
	if cfgFlag != "" {
		return cfgFlag
	}
	if path := os.Getenv("IOTSIM_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
