// Bjig is a command line controller for BraveJIG routers and sensor modules.
//
// It talks to a BraveJIG USB router over a serial link and provides router
// management commands, module commands, firmware updates, and a monitor mode
// that prints live sensor uplinks.
//
// Usage:
//
//	bjig [command] [flags]
//
// See 'bjig --help' for available commands. Set BJIG_LOG_LEVEL to enable
// diagnostic logging (debug level dumps every serial frame).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bravejig/bjig/internal/logging"
	"github.com/bravejig/bjig/internal/version"
)

func main() {
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bjig",
	Short: "BraveJIG router and module controller",
	Long: `A command line controller for BraveJIG IoT routers and sensor modules.

Provides router management (start/stop, device table, scan mode), generic
module commands (instant uplink, parameter get/set, restart), firmware
updates for both routers and sensor modules, and a live uplink monitor.`,
	Version: version.Version,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bjig %s (commit: %s)\n", version.Version, version.Commit)
	},
}
