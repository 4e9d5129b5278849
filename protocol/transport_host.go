package protocol

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kioskctl/host/serial"
)

// EventKind classifies what the transport observed
type EventKind int

const (
	// EventCommand carries a decoded device line
	EventCommand EventKind = iota
	// EventRaw carries a line that is not a command (firmware debug output)
	EventRaw
	// EventSent carries a line written to the device
	EventSent
	// EventState reports a connection state change
	EventState
	// EventError reports a non-fatal read, write or framing failure
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventRaw:
		return "raw"
	case EventSent:
		return "sent"
	case EventState:
		return "state"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one item of the transport's output stream
type Event struct {
	Kind    EventKind
	Time    time.Time
	Command Command
	Text    string
	State   ConnectionState
	Err     error
}

// Opener opens the physical port
type Opener func(cfg *serial.Config) (serial.Port, error)

const (
	defaultPollInterval = 10 * time.Millisecond
	defaultEventBuffer  = 256
	stateDeliverTimeout = 2 * time.Second

	// consecutive read failures tolerated before the connection is failed
	maxReadFailures = 2
)

// Option configures a HostTransport
type Option func(*HostTransport)

// WithOpener replaces serial.Open, e.g. with a MockPort opener in tests
func WithOpener(open Opener) Option {
	return func(t *HostTransport) { t.opener = open }
}

// WithLogger sets the diagnostic logger
func WithLogger(log zerolog.Logger) Option {
	return func(t *HostTransport) { t.log = log }
}

// WithPollInterval sets the back-off between empty polls
func WithPollInterval(d time.Duration) Option {
	return func(t *HostTransport) {
		if d > 0 {
			t.pollInterval = d
		}
	}
}

// WithEventBuffer sets the capacity of the event stream
func WithEventBuffer(n int) Option {
	return func(t *HostTransport) {
		if n > 0 {
			t.eventBuffer = n
		}
	}
}

// HostTransport owns the serial port.
// A background read loop frames lines and publishes them on Events in wire
// order; Send serializes writes so lines never interleave on the wire. The
// transport can be reopened after Close or a failure.
type HostTransport struct {
	opener       Opener
	log          zerolog.Logger
	pollInterval time.Duration
	eventBuffer  int

	// Connection state, guarded by mu
	mu       sync.RWMutex
	state    ConnectionState
	port     serial.Port
	device   string
	stopChan chan struct{}
	doneChan chan struct{}

	// Held for the whole of a line write
	writeMutex sync.Mutex

	events chan Event
}

// NewHostTransport creates a disconnected transport
func NewHostTransport(opts ...Option) *HostTransport {
	t := &HostTransport{
		opener:       serial.Open,
		log:          zerolog.Nop(),
		pollInterval: defaultPollInterval,
		eventBuffer:  defaultEventBuffer,
		state:        StateDisconnected,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.events = make(chan Event, t.eventBuffer)
	return t
}

// Events returns the stream of observations. It is never closed.
func (t *HostTransport) Events() <-chan Event {
	return t.events
}

// State returns the current connection state
func (t *HostTransport) State() ConnectionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Device returns the device path of the current or last connection
func (t *HostTransport) Device() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.device
}

// Open opens the port, discards stale input and starts the read loop.
// On failure the state becomes StateFailed and a *TransportError is returned.
func (t *HostTransport) Open(cfg *serial.Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	t.mu.Lock()
	if t.state == StateOpen || t.state == StateConnecting {
		t.mu.Unlock()
		return &TransportError{Op: "open", Device: cfg.Device, Err: ErrAlreadyOpen}
	}
	t.state = StateConnecting
	t.device = cfg.Device
	t.mu.Unlock()
	t.emitState(StateConnecting, nil)

	port, err := t.opener(cfg)
	if err == nil {
		if resetErr := port.ResetInputBuffer(); resetErr != nil {
			_ = port.Close()
			err = fmt.Errorf("failed to clear input: %w", resetErr)
		}
	}
	if err != nil {
		terr := &TransportError{Op: "open", Device: cfg.Device, Err: err}
		t.mu.Lock()
		if t.state == StateConnecting {
			t.state = StateFailed
		}
		t.mu.Unlock()
		t.log.Error().Err(err).Str("device", cfg.Device).Msg("serial open failed")
		t.emitState(StateFailed, terr)
		return terr
	}

	t.mu.Lock()
	if t.state != StateConnecting {
		// Closed while opening
		t.mu.Unlock()
		_ = port.Close()
		return &TransportError{Op: "open", Device: cfg.Device, Err: ErrNotConnected}
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	t.port = port
	t.stopChan = stop
	t.doneChan = done
	t.state = StateOpen
	t.mu.Unlock()

	go t.readLoop(port, cfg.Device, stop, done)

	t.log.Info().Str("device", cfg.Device).Int("baud", cfg.Baud).Msg("serial port open")
	t.emitState(StateOpen, nil)
	return nil
}

// Send encodes and writes one command.
// It fails with ErrNotConnected unless the state is StateOpen. A write
// failure is reported on the event stream and returned; the connection
// is left for the read loop to judge.
func (t *HostTransport) Send(cmd Command) error {
	t.mu.RLock()
	state, port, device := t.state, t.port, t.device
	t.mu.RUnlock()

	if state != StateOpen || port == nil {
		err := &TransportError{Op: "send", Device: device, Err: ErrNotConnected}
		t.emit(Event{Kind: EventError, Text: "cannot send " + cmd.Name + ": not connected", Err: err})
		return err
	}

	data := Encode(cmd)

	t.writeMutex.Lock()
	n, err := port.Write(data)
	t.writeMutex.Unlock()

	if err == nil && n != len(data) {
		err = fmt.Errorf("incomplete write: %d/%d bytes", n, len(data))
	}
	if err != nil {
		terr := &TransportError{Op: "write", Device: device, Err: err}
		t.log.Warn().Err(err).Str("command", cmd.Name).Msg("serial write failed")
		t.emit(Event{Kind: EventError, Text: "write failed: " + cmd.String(), Err: terr})
		return terr
	}

	t.emit(Event{Kind: EventSent, Command: cmd, Text: cmd.String()})
	return nil
}

// Close stops the read loop and releases the port. It is idempotent.
func (t *HostTransport) Close() error {
	t.mu.Lock()
	port, stop, done := t.port, t.stopChan, t.doneChan
	prev := t.state
	t.port = nil
	t.stopChan = nil
	t.doneChan = nil
	t.state = StateDisconnected
	t.mu.Unlock()

	if port == nil {
		if prev != StateDisconnected {
			t.emitState(StateDisconnected, nil)
		}
		return nil
	}

	close(stop)
	err := port.Close()
	<-done

	t.log.Info().Str("device", t.Device()).Msg("serial port closed")
	t.emitState(StateDisconnected, nil)
	if err != nil {
		return &TransportError{Op: "close", Device: t.Device(), Err: err}
	}
	return nil
}

// readLoop polls the port and publishes framed lines until stopped or
// until reads keep failing.
func (t *HostTransport) readLoop(port serial.Port, device string, stop, done chan struct{}) {
	defer close(done)

	lines := NewLineBuffer(MaxLineLength)
	buffer := make([]byte, 256)
	failures := 0

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := port.Read(buffer)
		if err != nil {
			select {
			case <-stop:
				return
			default:
			}

			failures++
			terr := &TransportError{Op: "read", Device: device, Err: err}
			if failures >= maxReadFailures {
				t.fail(port, terr)
				return
			}
			t.log.Warn().Err(err).Str("device", device).Msg("serial read failed, retrying")
			t.deliver(Event{Kind: EventError, Text: "read failed, retrying", Err: terr}, stop)
			if !t.sleep(stop) {
				return
			}
			continue
		}
		failures = 0

		if n == 0 {
			if !t.sleep(stop) {
				return
			}
			continue
		}

		if dropped := lines.Write(buffer[:n]); dropped > 0 {
			t.deliver(Event{
				Kind: EventError,
				Text: fmt.Sprintf("dropped %d over-long line(s)", dropped),
				Err:  ErrLineTooLong,
			}, stop)
		}

		for {
			line, ok := lines.Next()
			if !ok {
				break
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			cmd, err := Decode(line)
			if err != nil {
				t.deliver(Event{Kind: EventRaw, Text: line}, stop)
				continue
			}
			t.deliver(Event{Kind: EventCommand, Command: cmd, Text: line}, stop)
		}
	}
}

// fail moves the connection to StateFailed unless Close got there first
func (t *HostTransport) fail(port serial.Port, cause error) {
	t.mu.Lock()
	if t.port != port {
		t.mu.Unlock()
		return
	}
	t.port = nil
	t.stopChan = nil
	t.doneChan = nil
	t.state = StateFailed
	t.mu.Unlock()

	_ = port.Close()
	t.log.Error().Err(cause).Msg("serial connection lost")
	t.emitState(StateFailed, cause)
}

func (t *HostTransport) sleep(stop chan struct{}) bool {
	timer := time.NewTimer(t.pollInterval)
	defer timer.Stop()
	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}

// deliver publishes a read-loop event, waiting for room so that inbound
// lines are never dropped or reordered.
func (t *HostTransport) deliver(ev Event, stop chan struct{}) {
	ev.Time = time.Now()
	select {
	case t.events <- ev:
	case <-stop:
	}
}

// emit publishes an event without blocking the caller
func (t *HostTransport) emit(ev Event) {
	ev.Time = time.Now()
	select {
	case t.events <- ev:
	default:
		t.log.Warn().Str("kind", ev.Kind.String()).Msg("event stream full, dropping event")
	}
}

func (t *HostTransport) emitState(state ConnectionState, err error) {
	ev := Event{Kind: EventState, Time: time.Now(), State: state, Text: state.String(), Err: err}
	timer := time.NewTimer(stateDeliverTimeout)
	defer timer.Stop()
	select {
	case t.events <- ev:
	case <-timer.C:
		t.log.Warn().Str("state", state.String()).Msg("event stream full, dropping state change")
	}
}
