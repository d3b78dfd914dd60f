// Command ups-guardian polls a HID-attached UPS and orchestrates a graceful
// shutdown or hibernate when utility power is lost and does not return
// within a configured grace period.
package main

import (
	"os"

	"github.com/sweeney/ups-guardian/cmd/ups-guardian/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("%v", err)
		os.Exit(commands.ExitCode(err))
	}
}
