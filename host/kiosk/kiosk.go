// Package kiosk connects the serial transport, the dispatcher and the sync
// controller into one device session.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"kioskctl/core"
	"kioskctl/host/serial"
	"kioskctl/protocol"
)

var (
	ErrDisconnected   = errors.New("disconnected by operator")
	ErrAlreadyStarted = errors.New("kiosk already started")
	ErrEmptyBarcode   = errors.New("empty barcode")
)

// Options wires a Kiosk to its collaborators
type Options struct {
	Catalog core.Catalog
	// Sales receives every sale; nil disables recording
	Sales core.SalesLog
	// Host receives sale and alarm events and approves device-requested
	// syncs; nil declines them
	Host core.Host
	Sink core.LogSink
	Log  zerolog.Logger

	// Opener replaces serial.Open
	Opener        protocol.Opener
	PollInterval  time.Duration
	RowDelay      time.Duration
	ProgressEvery int
	OnProgress    func(core.SyncProgress)
}

// Status is the operator's view of the session
type Status struct {
	Connection protocol.ConnectionState
	Device     string
	Sync       core.SyncStatus
	LastAlarm  *core.AlarmEvent
	Sales      int
}

// Kiosk is one device session: events read by the transport are handled
// in wire order on a single goroutine started by Start.
type Kiosk struct {
	catalog   core.Catalog
	sales     core.SalesLog
	host      core.Host
	sink      core.LogSink
	log       zerolog.Logger
	transport *protocol.HostTransport
	sync      *core.SyncController
	dispatch  *core.Dispatcher

	mu        sync.Mutex
	lastAlarm *core.AlarmEvent
	saleCount int
	cancel    context.CancelFunc
	done      chan struct{}

	// at most one device sync request waits for the host at a time
	approving atomic.Bool
	approvals sync.WaitGroup
}

// New creates a disconnected kiosk
func New(opts Options) *Kiosk {
	sink := opts.Sink
	if sink == nil {
		sink = core.NopSink{}
	}

	k := &Kiosk{
		catalog: opts.Catalog,
		sales:   opts.Sales,
		host:    opts.Host,
		sink:    sink,
		log:     opts.Log,
	}

	topts := []protocol.Option{
		protocol.WithLogger(opts.Log.With().Str("component", "transport").Logger()),
		protocol.WithPollInterval(opts.PollInterval),
	}
	if opts.Opener != nil {
		topts = append(topts, protocol.WithOpener(opts.Opener))
	}
	k.transport = protocol.NewHostTransport(topts...)

	sopts := []core.SyncOption{
		core.WithSyncSink(sink),
		core.WithProgressEvery(opts.ProgressEvery),
	}
	if opts.RowDelay > 0 {
		sopts = append(sopts, core.WithRowDelay(opts.RowDelay))
	}
	if opts.OnProgress != nil {
		sopts = append(sopts, core.WithProgress(opts.OnProgress))
	}
	k.sync = core.NewSyncController(k.transport, sopts...)
	k.dispatch = core.NewDispatcher(opts.Catalog, k, k.sync, sink)
	return k
}

// Start runs the event loop until ctx is cancelled or Close is called
func (k *Kiosk) Start(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.done != nil {
		return ErrAlreadyStarted
	}
	ctx, k.cancel = context.WithCancel(ctx)
	k.done = make(chan struct{})
	go k.loop(ctx, k.done)
	return nil
}

// Close disconnects and stops the event loop
func (k *Kiosk) Close() error {
	err := k.Disconnect()

	k.mu.Lock()
	cancel, done := k.cancel, k.done
	k.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	k.approvals.Wait()
	return err
}

// Connect opens the device
func (k *Kiosk) Connect(cfg *serial.Config) error {
	return k.transport.Open(cfg)
}

// Disconnect closes the device; a sync in flight is abandoned
func (k *Kiosk) Disconnect() error {
	err := k.transport.Close()
	k.sync.ConnectionLost(ErrDisconnected)
	return err
}

// Sync sends the whole catalog to the device. It returns once SYNC_START is
// out; use WaitSync to follow the session.
func (k *Kiosk) Sync(ctx context.Context) error {
	if k.transport.State() != protocol.StateOpen {
		return &core.Error{Kind: core.KindTransport, Op: "sync", Err: protocol.ErrNotConnected}
	}
	items, err := k.catalog.List(ctx)
	if err != nil {
		return fmt.Errorf("list catalog: %w", err)
	}
	return k.sync.Begin(items)
}

// WaitSync blocks until the current sync completes or is abandoned
func (k *Kiosk) WaitSync(ctx context.Context) error {
	return k.sync.Wait(ctx)
}

// CancelSync abandons the sync in flight
func (k *Kiosk) CancelSync() error {
	return k.sync.Cancel()
}

// AckSync acknowledges a completed sync
func (k *Kiosk) AckSync() error {
	return k.sync.AckComplete()
}

// Scan makes the device behave as if barcode had been scanned
func (k *Kiosk) Scan(barcode string) error {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return ErrEmptyBarcode
	}
	if protocol.UnsafeValue(barcode) {
		k.emit(zerolog.WarnLevel, core.LogSent, fmt.Sprintf("barcode %q contains a delimiter character", barcode))
	}
	return k.transport.Send(protocol.Scan(barcode))
}

// Status returns a snapshot of the session
func (k *Kiosk) Status() Status {
	k.mu.Lock()
	var alarm *core.AlarmEvent
	if k.lastAlarm != nil {
		a := *k.lastAlarm
		alarm = &a
	}
	count := k.saleCount
	k.mu.Unlock()

	return Status{
		Connection: k.transport.State(),
		Device:     k.transport.Device(),
		Sync:       k.sync.Status(),
		LastAlarm:  alarm,
		Sales:      count,
	}
}

// Dispatcher exposes the routing table, e.g. to register vendor commands
func (k *Kiosk) Dispatcher() *core.Dispatcher {
	return k.dispatch
}

// OnSale records the sale and forwards it to the host
func (k *Kiosk) OnSale(ctx context.Context, sale core.SaleEvent) {
	k.mu.Lock()
	k.saleCount++
	k.mu.Unlock()

	if k.sales != nil {
		if err := k.sales.Record(ctx, sale); err != nil {
			k.log.Error().Err(err).Str("barcode", sale.Barcode).Msg("failed to record sale")
			k.emit(zerolog.ErrorLevel, core.LogSale, "sale not recorded: "+err.Error())
		}
	}
	if k.host != nil {
		k.host.OnSale(ctx, sale)
	}
}

// OnAlarm keeps the alarm for Status and forwards it to the host
func (k *Kiosk) OnAlarm(ctx context.Context, alarm core.AlarmEvent) {
	k.mu.Lock()
	k.lastAlarm = &alarm
	k.mu.Unlock()

	if k.host != nil {
		k.host.OnAlarm(ctx, alarm)
	}
}

// ApproveSync hands a device sync request to the host without holding up
// the event loop: the host is asked on its own goroutine and, on approval,
// the catalog is synced from there. It always reports false to the
// dispatcher. Requests arriving while one is pending are dropped.
func (k *Kiosk) ApproveSync(ctx context.Context, req core.SyncRequest) bool {
	if k.host == nil {
		return false
	}
	if !k.approving.CompareAndSwap(false, true) {
		k.emit(zerolog.InfoLevel, core.LogReceived, "device sync request ignored: previous request awaiting approval")
		return false
	}

	k.approvals.Add(1)
	go func() {
		defer k.approvals.Done()
		defer k.approving.Store(false)
		k.approve(ctx, req)
	}()
	return false
}

func (k *Kiosk) approve(ctx context.Context, req core.SyncRequest) {
	if !k.host.ApproveSync(ctx, req) {
		k.emit(zerolog.InfoLevel, core.LogReceived, "device sync request declined")
		return
	}
	if k.sync.State() == core.SyncComplete {
		_ = k.sync.AckComplete()
	}
	if err := k.Sync(ctx); err != nil {
		k.emit(zerolog.ErrorLevel, core.LogWriteError, "approved sync not started: "+err.Error())
	}
}

func (k *Kiosk) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	events := k.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			k.handle(ctx, ev)
		}
	}
}

func (k *Kiosk) handle(ctx context.Context, ev protocol.Event) {
	switch ev.Kind {
	case protocol.EventCommand:
		k.emit(zerolog.DebugLevel, core.LogReceived, ev.Text)
		k.dispatch.Dispatch(ctx, ev.Command)

	case protocol.EventRaw:
		k.emit(zerolog.DebugLevel, core.LogRaw, ev.Text)

	case protocol.EventSent:
		k.emit(zerolog.DebugLevel, core.LogSent, ev.Text)

	case protocol.EventState:
		k.handleState(ev)

	case protocol.EventError:
		k.handleError(ev)
	}
}

func (k *Kiosk) handleState(ev protocol.Event) {
	switch ev.State {
	case protocol.StateFailed:
		text := "connection failed"
		if ev.Err != nil {
			text += ": " + ev.Err.Error()
		}
		k.emit(zerolog.ErrorLevel, core.LogConnectionFailed, text)
	default:
		k.emit(zerolog.InfoLevel, core.LogConnection, "connection "+ev.State.String())
	}

	if ev.State != protocol.StateFailed && ev.State != protocol.StateDisconnected {
		return
	}
	// A late event from a previous connection must not abort a new session
	if cur := k.transport.State(); cur == protocol.StateOpen || cur == protocol.StateConnecting {
		return
	}
	cause := ev.Err
	if cause == nil {
		cause = ErrDisconnected
	}
	k.sync.ConnectionLost(cause)
}

func (k *Kiosk) handleError(ev protocol.Event) {
	var terr *protocol.TransportError
	switch {
	case errors.Is(ev.Err, protocol.ErrLineTooLong):
		k.emit(zerolog.WarnLevel, core.LogReadError, ev.Text)
	case errors.As(ev.Err, &terr) && terr.Op == "read":
		k.emit(zerolog.WarnLevel, core.LogReadError, fmt.Sprintf("%s: %v", ev.Text, terr.Err))
	default:
		k.emit(zerolog.ErrorLevel, core.LogWriteError, fmt.Sprintf("%s: %v", ev.Text, ev.Err))
	}
}

func (k *Kiosk) emit(level zerolog.Level, kind core.LogKind, text string) {
	k.sink.Log(core.LogEvent{Time: time.Now(), Level: level, Source: "kiosk", Kind: kind, Text: text})
}
