// Package config loads and merges configuration from a TOML file and
// environment variable overrides.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so that BurntSushi/toml can decode "30s"-style
// strings via the encoding.TextUnmarshaler interface.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// Model selects which dialect frontend the service wraps the HID session
// with.
type Model string

const (
	ModelVoltronic Model = "voltronic"
	ModelMegatec   Model = "megatec"
)

// DeviceConfig selects and addresses the HID device.
type DeviceConfig struct {
	Model        Model   `toml:"model"`
	VendorID     uint16  `toml:"vendor_id"`
	ProductID    uint16  `toml:"product_id"`
	HIDUsagePage *uint16 `toml:"hid_usage_page"`
	HIDUsageID   *uint16 `toml:"hid_usage_id"`
}

// PollConfig tunes the status poller.
type PollConfig struct {
	Interval       Duration `toml:"poll_interval"`
	FailureTimeout Duration `toml:"poll_failure_timeout"`
}

// ShutdownConfig tunes the grace-period state machine.
type ShutdownConfig struct {
	Hibernate       bool     `toml:"hibernate"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

// ServiceConfig names the service. DisplayName is used as the title of the
// grace-period warning sent to active sessions.
type ServiceConfig struct {
	DisplayName string `toml:"display_name"`
}

// TelemetryConfig controls the loopback-only Prometheus endpoint.
type TelemetryConfig struct {
	ListenAddress string `toml:"listen_address"`
}

// Config is the top-level configuration struct.
type Config struct {
	Device    DeviceConfig    `toml:"device"`
	Poll      PollConfig      `toml:"poll"`
	Shutdown  ShutdownConfig  `toml:"shutdown"`
	Service   ServiceConfig   `toml:"service"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// Load reads config from the first existing path in paths, then applies
// environment variable overrides. Missing files are skipped silently; a
// malformed file returns an error. Calling Load() with no arguments returns
// pure defaults plus any env overrides.
func Load(paths ...string) (*Config, error) {
	cfg := defaults()

	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, statErr := os.Stat(path); statErr == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %q: %w", path, err)
			}
			break // first found file wins
		} else if !os.IsNotExist(statErr) {
			return nil, fmt.Errorf("checking config path %q: %w", path, statErr)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaults() *Config {
	usagePage := uint16(0xFF00)
	usageID := uint16(0x0001)
	return &Config{
		Device: DeviceConfig{
			Model:        ModelVoltronic,
			VendorID:     0x0665,
			ProductID:    0x5161,
			HIDUsagePage: &usagePage,
			HIDUsageID:   &usageID,
		},
		Poll: PollConfig{
			Interval:       Duration{1000 * time.Millisecond},
			FailureTimeout: Duration{10 * time.Second},
		},
		Shutdown: ShutdownConfig{
			Hibernate:       true,
			ShutdownTimeout: Duration{300 * time.Second},
		},
		Service: ServiceConfig{
			DisplayName: "UPS Guardian",
		},
		Telemetry: TelemetryConfig{
			ListenAddress: "127.0.0.1:9111",
		},
	}
}

// applyEnvOverrides copies any set UPS_GUARDIAN_* environment variables
// into cfg.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("UPS_GUARDIAN_DEVICE_MODEL"); v != "" {
		cfg.Device.Model = Model(v)
	}
	if v := os.Getenv("UPS_GUARDIAN_DEVICE_VENDOR_ID"); v != "" {
		setUint16(&cfg.Device.VendorID, "UPS_GUARDIAN_DEVICE_VENDOR_ID", v)
	}
	if v := os.Getenv("UPS_GUARDIAN_DEVICE_PRODUCT_ID"); v != "" {
		setUint16(&cfg.Device.ProductID, "UPS_GUARDIAN_DEVICE_PRODUCT_ID", v)
	}
	if v := os.Getenv("UPS_GUARDIAN_DEVICE_HID_USAGE_PAGE"); v != "" {
		page := cfg.Device.HIDUsagePage
		if page == nil {
			page = new(uint16)
		}
		setUint16(page, "UPS_GUARDIAN_DEVICE_HID_USAGE_PAGE", v)
		cfg.Device.HIDUsagePage = page
	}
	if v := os.Getenv("UPS_GUARDIAN_DEVICE_HID_USAGE_ID"); v != "" {
		id := cfg.Device.HIDUsageID
		if id == nil {
			id = new(uint16)
		}
		setUint16(id, "UPS_GUARDIAN_DEVICE_HID_USAGE_ID", v)
		cfg.Device.HIDUsageID = id
	}
	if v := os.Getenv("UPS_GUARDIAN_POLL_INTERVAL"); v != "" {
		setDuration(&cfg.Poll.Interval, "UPS_GUARDIAN_POLL_INTERVAL", v)
	}
	if v := os.Getenv("UPS_GUARDIAN_POLL_FAILURE_TIMEOUT"); v != "" {
		setDuration(&cfg.Poll.FailureTimeout, "UPS_GUARDIAN_POLL_FAILURE_TIMEOUT", v)
	}
	if v := os.Getenv("UPS_GUARDIAN_SHUTDOWN_HIBERNATE"); v != "" {
		cfg.Shutdown.Hibernate = v == "true" || v == "1"
	}
	if v := os.Getenv("UPS_GUARDIAN_SHUTDOWN_TIMEOUT"); v != "" {
		setDuration(&cfg.Shutdown.ShutdownTimeout, "UPS_GUARDIAN_SHUTDOWN_TIMEOUT", v)
	}
	if v := os.Getenv("UPS_GUARDIAN_SERVICE_DISPLAY_NAME"); v != "" {
		cfg.Service.DisplayName = v
	}
	if v := os.Getenv("UPS_GUARDIAN_TELEMETRY_LISTEN_ADDRESS"); v != "" {
		cfg.Telemetry.ListenAddress = v
	}
}

func setUint16(dst *uint16, name, value string) {
	v, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		log.Printf("config: ignoring invalid %s=%q: %v", name, value, err)
		return
	}
	*dst = uint16(v)
}

func setDuration(dst *Duration, name, value string) {
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("config: ignoring invalid %s=%q: %v", name, value, err)
		return
	}
	*dst = Duration{d}
}
