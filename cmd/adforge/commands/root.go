package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "adforge",
	Short: "Conversational advertisement generation service",
	Long: `adforge - a websocket chat service that turns a product conversation
into generated ad images with captions.

The server collects product details over a per-user websocket channel,
offers templates from the catalog, and fans a selection out into
parallel image and caption generation.

Configuration is stored in the OS config directory:
  macOS:   ~/Library/Application Support/adforge/config.yaml
  Linux:   ~/.config/adforge/config.yaml
  Windows: %AppData%/adforge/config.yaml

Examples:
  # Run the server
  adforge serve

  # Seed the template catalog from a YAML file
  adforge templates seed -f templates.yaml

  # Inspect the catalog
  adforge templates list`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: OS config dir)")
}

// IsVerbose returns whether verbose mode is enabled.
func IsVerbose() bool {
	return verbose
}
