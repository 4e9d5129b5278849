package serial

import (
	"errors"
	"fmt"
	"os"

	bugst "go.bug.st/serial"
)

// NativePort wraps the go.bug.st/serial implementation
type NativePort struct {
	port bugst.Port
	cfg  *Config
}

// openNative opens the port 8-N-1, applies the read timeout and deasserts
// the modem control lines so the device is not reset by the open.
func openNative(cfg *Config) (Port, error) {
	mode := &bugst.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
		InitialStatusBits: &bugst.ModemOutputBits{
			DTR: false,
			RTS: false,
		},
	}

	port, err := bugst.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, classify(err))
	}

	setup := []func() error{
		func() error { return port.SetReadTimeout(cfg.ReadTimeout) },
		func() error { return port.SetDTR(false) },
		func() error { return port.SetRTS(false) },
	}
	for _, step := range setup {
		if err := step(); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("failed to configure serial port %s: %w", cfg.Device, classify(err))
		}
	}

	return &NativePort{
		port: port,
		cfg:  cfg,
	}, nil
}

// Read reads data from the serial port
func (p *NativePort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if err != nil {
		return n, classify(err)
	}
	return n, nil
}

// Write writes data to the serial port
func (p *NativePort) Write(b []byte) (int, error) {
	n, err := p.port.Write(b)
	if err != nil {
		return n, classify(err)
	}
	return n, nil
}

// Close closes the serial port
func (p *NativePort) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// ResetInputBuffer discards unread bytes held by the driver
func (p *NativePort) ResetInputBuffer() error {
	return p.port.ResetInputBuffer()
}

// classify maps driver errors onto the package diagnostics while keeping
// the original error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}

	code, ok := portErrorCode(err)
	if ok {
		switch code {
		case bugst.PortNotFound, bugst.InvalidSerialPort:
			return fmt.Errorf("%w: %w", ErrPortNotFound, err)
		case bugst.PortBusy:
			return fmt.Errorf("%w: %w", ErrPortBusy, err)
		case bugst.PermissionDenied:
			return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		case bugst.PortClosed:
			return fmt.Errorf("%w: %w", ErrPortClosed, err)
		}
		return err
	}

	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrPortNotFound, err)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	case errors.Is(err, os.ErrClosed):
		return fmt.Errorf("%w: %w", ErrPortClosed, err)
	}
	return err
}

func portErrorCode(err error) (bugst.PortErrorCode, bool) {
	var ptr *bugst.PortError
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code(), true
	}
	var val bugst.PortError
	if errors.As(err, &val) {
		return val.Code(), true
	}
	return 0, false
}
