// Package config loads kioskctl settings from defaults, a TOML file and
// KIOSK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"kioskctl/core"
	"kioskctl/host/serial"
)

// EnvPrefix prefixes every environment variable
const EnvPrefix = "KIOSK_"

type Config struct {
	Serial SerialConfig `toml:"serial" envPrefix:"SERIAL_"`
	Sync   SyncConfig   `toml:"sync" envPrefix:"SYNC_"`
	Store  StoreConfig  `toml:"store" envPrefix:"STORE_"`
	Log    LogConfig    `toml:"log" envPrefix:"LOG_"`
}

type SerialConfig struct {
	Device       string        `toml:"device" env:"DEVICE"`
	Baud         int           `toml:"baud" env:"BAUD"`
	Driver       string        `toml:"driver" env:"DRIVER"`
	ReadTimeout  time.Duration `toml:"read_timeout" env:"READ_TIMEOUT"`
	PollInterval time.Duration `toml:"poll_interval" env:"POLL_INTERVAL"`
}

type SyncConfig struct {
	// RowDelay is the flow-control pause between SYNC_DATA rows
	RowDelay      time.Duration `toml:"row_delay" env:"ROW_DELAY"`
	ProgressEvery int           `toml:"progress_every" env:"PROGRESS_EVERY"`
}

type StoreConfig struct {
	Path string `toml:"path" env:"PATH"`
}

type LogConfig struct {
	Level  string `toml:"level" env:"LEVEL"`
	Format string `toml:"format" env:"FORMAT"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Baud:         115200,
			Driver:       string(serial.DriverNative),
			ReadTimeout:  time.Second,
			PollInterval: 10 * time.Millisecond,
		},
		Sync: SyncConfig{
			RowDelay:      core.DefaultRowDelay,
			ProgressEvery: core.DefaultProgressEvery,
		},
		Store: StoreConfig{
			Path: "kiosk.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate rejects settings the serial layer cannot honour
func (c *Config) Validate() error {
	var errs []error
	if !serial.ValidBaud(c.Serial.Baud) {
		errs = append(errs, fmt.Errorf("serial.baud %d not one of %v", c.Serial.Baud, serial.BaudRates))
	}
	switch serial.Driver(c.Serial.Driver) {
	case serial.DriverNative, serial.DriverTarm:
	default:
		errs = append(errs, fmt.Errorf("serial.driver %q must be %q or %q", c.Serial.Driver, serial.DriverNative, serial.DriverTarm))
	}
	if c.Serial.ReadTimeout <= 0 {
		errs = append(errs, errors.New("serial.read_timeout must be positive"))
	}
	if c.Serial.PollInterval <= 0 {
		errs = append(errs, errors.New("serial.poll_interval must be positive"))
	}
	if c.Sync.RowDelay < 0 {
		errs = append(errs, errors.New("sync.row_delay must not be negative"))
	}
	if c.Sync.ProgressEvery <= 0 {
		errs = append(errs, errors.New("sync.progress_every must be positive"))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path must be set"))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be console or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// SerialPort converts the serial section for serial.Open
func (c *Config) SerialPort() *serial.Config {
	cfg := serial.DefaultConfig(c.Serial.Device)
	cfg.Baud = c.Serial.Baud
	cfg.Driver = serial.Driver(c.Serial.Driver)
	cfg.ReadTimeout = c.Serial.ReadTimeout
	return cfg
}
