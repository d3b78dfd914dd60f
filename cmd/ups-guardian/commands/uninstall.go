package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Stop, disable, and remove the ups-guardian systemd unit",
	RunE:  runUninstall,
}

// runUninstall is the analogue of the original service's Service.delete:
// stop and disable the unit, then remove its file. The config file and any
// data under /etc/ups-guardian are left in place.
func runUninstall(cmd *cobra.Command, args []string) error {
	if err := runSystemctl("disable", "--now", "ups-guardian"); err != nil {
		return err
	}

	if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing unit file: %w", err)
	}

	if err := runSystemctl("daemon-reload"); err != nil {
		return err
	}

	fmt.Println("ups-guardian uninstalled")
	return nil
}
