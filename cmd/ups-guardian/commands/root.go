// Package commands implements the ups-guardian CLI commands.
package commands

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	// Version is injected at build time.
	Version = "dev"

	// configPath is the global --config flag.
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "ups-guardian",
	Short: "Monitor a HID-attached UPS and shut down gracefully on sustained power loss",
	Long: `ups-guardian polls a HID-attached UPS over its vendor protocol and
watches for utility power loss. If power does not return within a
configurable grace period — or the battery reports low ahead of time — it
warns active local sessions and shuts down or hibernates the host.

Use "ups-guardian [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/ups-guardian/config.toml", "path to config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// exitConfigErr is sysexits.h's EX_CONFIG, used to give a config-load
// failure a distinguished exit code for init systems and monitoring to key
// on, rather than the generic failure code every other error returns.
const exitConfigErr = 78

// exitError lets a subcommand request a specific process exit code instead
// of the default 1 that Execute's caller otherwise uses.
type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string { return e.err.Error() }
func (e exitError) Unwrap() error { return e.err }

// ExitCode returns the process exit code an error from Execute should map
// to: the code carried by an exitError, or 1 for anything else.
func ExitCode(err error) int {
	var ee exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}
