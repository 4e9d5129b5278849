package serial

import (
	"errors"
	"fmt"
	"io"

	"github.com/tarm/serial"
)

// TarmPort wraps the tarm/serial implementation.
// tarm/serial cannot drive the modem control lines, so DTR/RTS keep
// whatever state the OS driver gives them at open.
type TarmPort struct {
	port *serial.Port
	cfg  *Config
}

func openTarm(cfg *Config) (Port, error) {
	serialConfig := &serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	}

	port, err := serial.OpenPort(serialConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, classify(err))
	}

	return &TarmPort{
		port: port,
		cfg:  cfg,
	}, nil
}

// Read reads data from the serial port.
// An elapsed read timeout surfaces from tarm/serial as io.EOF and is
// reported as an empty poll.
func (p *TarmPort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if errors.Is(err, io.EOF) {
		return n, nil
	}
	if err != nil {
		return n, classify(err)
	}
	return n, nil
}

// Write writes data to the serial port
func (p *TarmPort) Write(b []byte) (int, error) {
	n, err := p.port.Write(b)
	if err != nil {
		return n, classify(err)
	}
	return n, nil
}

// Close closes the serial port
func (p *TarmPort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// ResetInputBuffer flushes the driver buffers.
// tarm/serial only exposes a combined flush, which also drops unsent output;
// it is called before anything is written.
func (p *TarmPort) ResetInputBuffer() error {
	return p.port.Flush()
}
