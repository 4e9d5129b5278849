package core

import (
	"errors"

	"kioskctl/protocol"
)

// ErrorKind classifies a failure of the serial layer
type ErrorKind string

const (
	// Open, read or write failure on the channel
	KindTransport ErrorKind = "transport"
	// Line that could not be decoded; dropped
	KindProtocolDecode ErrorKind = "protocol_decode"
	// Missing or malformed field of a valid command; that event is dropped
	KindFieldExtraction ErrorKind = "field_extraction"
	// Operation not legal in the current sync state
	KindSyncState ErrorKind = "sync_state"
	// Sync abandoned mid-session; the device may hold a partial catalog
	KindDeviceAbortedSync ErrorKind = "device_aborted_sync"
)

var (
	ErrSyncAlreadyInProgress = errors.New("sync already in progress")
	ErrNoSyncAwaiting        = errors.New("no sync awaiting erase acknowledgment")
	ErrNoActiveSync          = errors.New("no sync in progress")
	ErrSyncNotComplete       = errors.New("sync not complete")
	ErrSyncAborted           = errors.New("sync aborted")
	ErrUnhandledCommand      = errors.New("unhandled command")
	ErrInvalidCatalog        = errors.New("invalid catalog")
)

// Error is a classified failure carrying the operation that raised it
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, op string, err error, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
// Bare protocol errors are classified by their sentinel; unknown errors
// yield the empty kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var terr *protocol.TransportError
	var ferr *protocol.FieldError
	switch {
	case errors.As(err, &terr), errors.Is(err, protocol.ErrNotConnected):
		return KindTransport
	case errors.As(err, &ferr), errors.Is(err, protocol.ErrMissingField), errors.Is(err, protocol.ErrInvalidField):
		return KindFieldExtraction
	case errors.Is(err, protocol.ErrNotACommand), errors.Is(err, protocol.ErrLineTooLong):
		return KindProtocolDecode
	case errors.Is(err, ErrSyncAborted):
		return KindDeviceAbortedSync
	case errors.Is(err, ErrSyncAlreadyInProgress), errors.Is(err, ErrNoSyncAwaiting),
		errors.Is(err, ErrNoActiveSync), errors.Is(err, ErrSyncNotComplete):
		return KindSyncState
	}
	return ""
}
