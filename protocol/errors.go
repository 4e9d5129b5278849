package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrNotACommand  = errors.New("protocol: not a command")
	ErrNotConnected = errors.New("protocol: not connected")
	ErrAlreadyOpen  = errors.New("protocol: already open")
	ErrMissingField = errors.New("protocol: missing field")
	ErrInvalidField = errors.New("protocol: invalid field")
	ErrLineTooLong  = errors.New("protocol: line too long")
)

// TransportError reports an open, read or write failure on the serial channel
type TransportError struct {
	Op     string
	Device string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Device, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FieldError reports a missing or malformed field of a decoded command
type FieldError struct {
	Command string
	Field   string
	Value   string
	Err     error
}

func (e *FieldError) Error() string {
	if errors.Is(e.Err, ErrMissingField) {
		return fmt.Sprintf("%s: missing field %s", e.Command, e.Field)
	}
	return fmt.Sprintf("%s: field %s=%q: %v", e.Command, e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
