package serial

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using go.bug.st/serial)
// - Fallback serial (using github.com/tarm/serial)
// - Mock serial (for testing)
//
// Read must return (0, nil) when the read timeout elapses without data.
type Port interface {
	io.ReadWriteCloser

	// ResetInputBuffer discards any stale bytes waiting in the receive buffer
	ResetInputBuffer() error
}

// Driver selects the library backing a native port
type Driver string

const (
	DriverNative Driver = "native"
	DriverTarm   Driver = "tarm"
)

// Supported baud rates offered to the operator
var BaudRates = []int{9600, 115200}

// Config holds serial port configuration.
// Framing is fixed at 8 data bits, no parity, 1 stop bit with flow control
// disabled and DTR/RTS deasserted at open.
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate (one of BaudRates)
	Baud int

	// Read timeout for a single poll of the port
	ReadTimeout time.Duration

	// Driver backing the port (DriverNative when empty)
	Driver Driver
}

// DefaultConfig returns the configuration used by the kiosk firmware
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: time.Second,
		Driver:      DriverNative,
	}
}

// Open diagnostics
var (
	ErrPortNotFound     = errors.New("serial: device absent")
	ErrPortBusy         = errors.New("serial: port busy")
	ErrPermissionDenied = errors.New("serial: permission denied")
	ErrPortClosed       = errors.New("serial: port closed")
)

// ValidBaud reports whether baud is one of BaudRates
func ValidBaud(baud int) bool {
	for _, b := range BaudRates {
		if b == baud {
			return true
		}
	}
	return false
}

// Open opens a serial port using the driver named in cfg
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Device == "" {
		return nil, fmt.Errorf("serial: empty device path: %w", ErrPortNotFound)
	}

	switch cfg.Driver {
	case "", DriverNative:
		return openNative(cfg)
	case DriverTarm:
		return openTarm(cfg)
	default:
		return nil, fmt.Errorf("serial: unknown driver %q", cfg.Driver)
	}
}
