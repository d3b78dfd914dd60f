package commands

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

const (
	unitPath       = "/etc/systemd/system/ups-guardian.service"
	defaultCfgPath = "/etc/ups-guardian/config.toml"
)

const unitTemplate = `[Unit]
Description=UPS Guardian power-loss supervisor
After=network.target

[Service]
Type=simple
ExecStart=/usr/local/bin/ups-guardian run --config %s
Restart=on-failure
RestartSec=5

[Install]
WantedBy=multi-user.target
`

const defaultConfigTemplate = `[device]
model = "voltronic"
vendor_id = 0x0665
product_id = 0x5161

[poll]
poll_interval = "1s"
poll_failure_timeout = "10s"

[shutdown]
hibernate = true
shutdown_timeout = "300s"

[service]
display_name = "UPS Guardian"

[telemetry]
listen_address = "127.0.0.1:9111"
`

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the ups-guardian systemd unit and a default config file",
	RunE:  runInstall,
}

// runInstall writes a systemd unit file and a default TOML config, then
// reloads and enables the unit — the Linux analogue of the original
// service's ScManager.create_local_system_service.
func runInstall(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll("/etc/ups-guardian", 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if _, err := os.Stat(defaultCfgPath); os.IsNotExist(err) {
		if err := os.WriteFile(defaultCfgPath, []byte(defaultConfigTemplate), 0644); err != nil {
			return fmt.Errorf("writing default config: %w", err)
		}
		fmt.Printf("wrote default config to %s\n", defaultCfgPath)
	}

	unit := fmt.Sprintf(unitTemplate, defaultCfgPath)
	if err := os.WriteFile(unitPath, []byte(unit), 0644); err != nil {
		return fmt.Errorf("writing unit file: %w", err)
	}
	fmt.Printf("wrote unit file to %s\n", unitPath)

	if err := runSystemctl("daemon-reload"); err != nil {
		return err
	}
	if err := runSystemctl("enable", "ups-guardian"); err != nil {
		return err
	}

	fmt.Println("ups-guardian installed; start it with 'systemctl start ups-guardian'")
	return nil
}

func runSystemctl(args ...string) error {
	cmd := exec.Command("systemctl", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("systemctl %v: %w", args, err)
	}
	return nil
}
