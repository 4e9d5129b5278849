package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kioskctl/protocol"
)

// SyncState is the phase of catalog synchronization
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncAwaitingErase
	SyncTransmitting
	SyncComplete
)

func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "idle"
	case SyncAwaitingErase:
		return "awaiting_erase"
	case SyncTransmitting:
		return "transmitting"
	case SyncComplete:
		return "complete"
	default:
		return "unknown"
	}
}

const (
	// DefaultRowDelay keeps the device's receive buffer from overrunning
	DefaultRowDelay = 20 * time.Millisecond
	// DefaultProgressEvery is the number of rows between progress reports
	DefaultProgressEvery = 5
)

// Sender writes one command to the device; *protocol.HostTransport is one
type Sender interface {
	Send(cmd protocol.Command) error
}

// SyncStatus is a snapshot of the controller
type SyncStatus struct {
	SessionID string
	State     SyncState
	Cursor    int
	Total     int
	// LastErr is why the most recent session ended early, nil if it completed
	LastErr error
}

// SyncOption configures a SyncController
type SyncOption func(*SyncController)

// WithRowDelay sets the pause after each SYNC_DATA row
func WithRowDelay(d time.Duration) SyncOption {
	return func(c *SyncController) {
		if d >= 0 {
			c.rowDelay = d
		}
	}
}

// WithProgressEvery sets the progress cadence in rows
func WithProgressEvery(n int) SyncOption {
	return func(c *SyncController) {
		if n > 0 {
			c.progressEvery = n
		}
	}
}

// WithSyncSink sets the operator log sink
func WithSyncSink(sink LogSink) SyncOption {
	return func(c *SyncController) {
		if sink != nil {
			c.out.sink = sink
		}
	}
}

// WithProgress registers a callback run on the sync goroutine at each
// progress point
func WithProgress(fn func(SyncProgress)) SyncOption {
	return func(c *SyncController) { c.onProgress = fn }
}

type syncSession struct {
	id     string
	items  []CatalogItem
	total  int
	cursor int
	// closed when the session is discarded
	abort chan struct{}
}

// SyncController runs the two-phase catalog sync:
// Begin sends SYNC_START and parks in AwaitingErase until Acknowledge
// (the device's REQ_SYNC); rows are then streamed on a dedicated goroutine
// with a fixed delay between them, and SYNC_END moves the session to
// Complete. Every send happens under mu after re-checking the session, so
// nothing reaches the wire once the session has been discarded.
type SyncController struct {
	sender        Sender
	rowDelay      time.Duration
	progressEvery int
	onProgress    func(SyncProgress)
	out           emitter

	mu      sync.Mutex
	state   SyncState
	session *syncSession
	lastErr error
	// closed and replaced on every transition to Idle or Complete
	settled chan struct{}
}

// NewSyncController creates an idle controller sending through sender
func NewSyncController(sender Sender, opts ...SyncOption) *SyncController {
	c := &SyncController{
		sender:        sender,
		rowDelay:      DefaultRowDelay,
		progressEvery: DefaultProgressEvery,
		out:           emitter{sink: NopSink{}, source: "sync"},
		state:         SyncIdle,
		settled:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current phase
func (c *SyncController) State() SyncState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns a snapshot for the status surface
func (c *SyncController) Status() SyncStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := SyncStatus{State: c.state, LastErr: c.lastErr}
	if s := c.session; s != nil {
		st.SessionID = s.id
		st.Cursor = s.cursor
		st.Total = s.total
	}
	return st
}

// Begin snapshots items and sends SYNC_START,TOTAL:<n>.
// It fails with ErrSyncAlreadyInProgress, without side effects, unless the
// controller is Idle, whatever items holds. If SYNC_START cannot be sent
// the controller stays Idle.
func (c *SyncController) Begin(items []CatalogItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != SyncIdle {
		return newError(KindSyncState, "begin", ErrSyncAlreadyInProgress,
			fmt.Sprintf("state is %s", c.state))
	}
	if err := ValidateItems(items); err != nil {
		return newError(KindSyncState, "begin", err, "")
	}

	snapshot := make([]CatalogItem, len(items))
	copy(snapshot, items)
	for _, item := range snapshot {
		if protocol.UnsafeValue(item.ID) || protocol.UnsafeValue(item.Name) {
			c.out.log(zerolog.WarnLevel, LogSyncStarted,
				fmt.Sprintf("item %q contains a delimiter character and may be misread by the device", item.ID))
		}
	}

	if err := c.sender.Send(protocol.SyncStart(len(snapshot))); err != nil {
		c.out.log(zerolog.ErrorLevel, LogWriteError, "sync not started: "+err.Error())
		return newError(KindTransport, "begin", err, "SYNC_START not sent")
	}

	c.session = &syncSession{
		id:    uuid.NewString(),
		items: snapshot,
		total: len(snapshot),
		abort: make(chan struct{}),
	}
	c.state = SyncAwaitingErase
	c.lastErr = nil
	c.out.log(zerolog.InfoLevel, LogSyncStarted,
		fmt.Sprintf("sync %s started: %d item(s), waiting for device erase", c.session.id, c.session.total))
	return nil
}

// Acknowledge handles the device's erase-complete signal and starts
// streaming rows. It fails with ErrNoSyncAwaiting unless the controller is
// in AwaitingErase.
func (c *SyncController) Acknowledge() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != SyncAwaitingErase {
		return newError(KindSyncState, "acknowledge", ErrNoSyncAwaiting,
			fmt.Sprintf("state is %s", c.state))
	}

	c.state = SyncTransmitting
	s := c.session
	c.out.log(zerolog.InfoLevel, LogSyncProgress,
		fmt.Sprintf("handshake received, transmitting %d item(s)", s.total))
	go c.transmit(s)
	return nil
}

// transmit streams the session's rows then SYNC_END
func (c *SyncController) transmit(s *syncSession) {
	for {
		progress, done, ok := c.sendNext(s)
		if !ok || done {
			return
		}
		if progress != nil && c.onProgress != nil {
			c.onProgress(*progress)
		}

		if c.rowDelay <= 0 {
			select {
			case <-s.abort:
				return
			default:
			}
			continue
		}
		timer := time.NewTimer(c.rowDelay)
		select {
		case <-s.abort:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// sendNext sends the row at the cursor, or SYNC_END once every row is out.
// ok is false when the session is gone or a send failed.
func (c *SyncController) sendNext(s *syncSession) (progress *SyncProgress, done, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != s || c.state != SyncTransmitting {
		return nil, false, false
	}

	if s.cursor >= s.total {
		if err := c.sender.Send(protocol.SyncEnd(s.total)); err != nil {
			c.abortLocked(KindDeviceAbortedSync, "SYNC_END not sent", err)
			return nil, false, false
		}
		c.state = SyncComplete
		c.out.log(zerolog.InfoLevel, LogSyncComplete,
			fmt.Sprintf("sync %s complete: %d item(s) sent", s.id, s.total))
		c.settleLocked()
		return nil, true, true
	}

	item := s.items[s.cursor]
	if err := c.sender.Send(protocol.SyncData(item.ID, item.Price.String(), item.Name)); err != nil {
		c.abortLocked(KindDeviceAbortedSync,
			fmt.Sprintf("row %d/%d not sent", s.cursor+1, s.total), err)
		return nil, false, false
	}
	s.cursor++

	if s.cursor%c.progressEvery == 0 || s.cursor == s.total {
		c.out.log(zerolog.InfoLevel, LogSyncProgress,
			fmt.Sprintf("sync progress %d/%d", s.cursor, s.total))
		return &SyncProgress{SessionID: s.id, Sent: s.cursor, Total: s.total}, false, true
	}
	return nil, false, true
}

// Cancel discards a session in AwaitingErase or Transmitting
func (c *SyncController) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case SyncAwaitingErase, SyncTransmitting:
		s := c.session
		c.lastErr = newError(KindSyncState, "cancel", ErrSyncAborted,
			fmt.Sprintf("cancelled by operator after %d/%d item(s)", s.cursor, s.total))
		c.out.log(zerolog.WarnLevel, LogSyncCancelled,
			fmt.Sprintf("sync %s cancelled after %d/%d item(s)", s.id, s.cursor, s.total))
		c.discardLocked()
		return nil
	default:
		return newError(KindSyncState, "cancel", ErrNoActiveSync, fmt.Sprintf("state is %s", c.state))
	}
}

// ConnectionLost returns the controller to Idle from any state.
// A session cut short is reported as a device-aborted sync.
func (c *SyncController) ConnectionLost(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case SyncIdle:
		return
	case SyncComplete:
		c.discardLocked()
	default:
		msg := "connection lost"
		if s := c.session; s != nil {
			msg = fmt.Sprintf("connection lost after %d/%d item(s); device catalog may be partial", s.cursor, s.total)
		}
		if cause == nil {
			cause = protocol.ErrNotConnected
		}
		c.abortLocked(KindDeviceAbortedSync, msg, cause)
	}
}

// AckComplete acknowledges a finished sync and returns to Idle
func (c *SyncController) AckComplete() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != SyncComplete {
		return newError(KindSyncState, "ack", ErrSyncNotComplete, fmt.Sprintf("state is %s", c.state))
	}
	c.discardLocked()
	return nil
}

// Wait blocks until no session is in flight (Idle or Complete) and returns
// the outcome of the most recent session: nil if it completed, otherwise the
// reason it ended early. There is no internal timeout; bound it with ctx.
func (c *SyncController) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		state, lastErr, settled := c.state, c.lastErr, c.settled
		c.mu.Unlock()

		switch state {
		case SyncComplete:
			return nil
		case SyncIdle:
			return lastErr
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-settled:
		}
	}
}

// abortLocked discards the session after a failure; mu must be held
func (c *SyncController) abortLocked(kind ErrorKind, msg string, cause error) {
	s := c.session
	id := ""
	if s != nil {
		id = s.id
	}
	c.lastErr = newError(kind, "sync", fmt.Errorf("%w: %w", ErrSyncAborted, cause), msg)
	c.out.log(zerolog.ErrorLevel, LogSyncAborted, fmt.Sprintf("sync %s aborted: %s: %v", id, msg, cause))
	c.discardLocked()
}

// discardLocked returns to Idle; mu must be held
func (c *SyncController) discardLocked() {
	if c.session != nil {
		close(c.session.abort)
		c.session = nil
	}
	c.state = SyncIdle
	c.settleLocked()
}

func (c *SyncController) settleLocked() {
	close(c.settled)
	c.settled = make(chan struct{})
}
