package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"kioskctl/protocol"
)

//go:generate mockgen -destination=mocks/mocks.go -package=mocks kioskctl/core Catalog,SalesLog,Host

// Host is the application side receiving domain events
type Host interface {
	OnSale(ctx context.Context, sale SaleEvent)
	OnAlarm(ctx context.Context, alarm AlarmEvent)
	// ApproveSync decides whether an unsolicited REQ_SYNC starts a sync.
	// It runs on the dispatching goroutine and holds up every later command
	// until it returns; a host that waits for a person should return false
	// and start the sync itself once answered.
	ApproveSync(ctx context.Context, req SyncRequest) bool
}

// Dispatcher turns each decoded command into at most one domain event.
// Failures are logged and the offending event dropped; Dispatch never fails.
type Dispatcher struct {
	registry *CommandRegistry
	catalog  Catalog
	host     Host
	sync     *SyncController
	out      emitter
	now      func() time.Time
}

// NewDispatcher routes REPORT and ALARM to host and REQ_SYNC to syncer
func NewDispatcher(catalog Catalog, host Host, syncer *SyncController, sink LogSink) *Dispatcher {
	if sink == nil {
		sink = NopSink{}
	}
	d := &Dispatcher{
		registry: NewCommandRegistry(),
		catalog:  catalog,
		host:     host,
		sync:     syncer,
		out:      emitter{sink: sink, source: "dispatcher"},
		now:      time.Now,
	}
	d.registry.Register(protocol.CmdReport, d.handleReport)
	d.registry.Register(protocol.CmdAlarm, d.handleAlarm)
	d.registry.Register(protocol.CmdReqSync, d.handleReqSync)
	return d
}

// Registry exposes the routing table, e.g. to add vendor commands
func (d *Dispatcher) Registry() *CommandRegistry {
	return d.registry
}

// Dispatch routes one command
func (d *Dispatcher) Dispatch(ctx context.Context, cmd protocol.Command) {
	err := d.registry.Dispatch(ctx, cmd)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnhandledCommand):
		d.out.log(zerolog.InfoLevel, LogUnhandled, "unhandled command: "+cmd.String())
	case KindOf(err) == KindFieldExtraction:
		d.out.log(zerolog.WarnLevel, LogFieldError, fmt.Sprintf("dropped %s: %v", cmd.Name, err))
	default:
		d.out.log(zerolog.ErrorLevel, LogUnhandled, fmt.Sprintf("%s failed: %v", cmd.Name, err))
	}
}

func (d *Dispatcher) handleReport(ctx context.Context, cmd protocol.Command) error {
	report, err := protocol.ParseReport(cmd)
	if err != nil {
		return newError(KindFieldExtraction, "report", err, "")
	}

	item, ok, err := d.catalog.Get(ctx, report.Barcode)
	if err != nil {
		d.out.log(zerolog.WarnLevel, LogSale,
			fmt.Sprintf("catalog lookup for %s failed, recording as unknown: %v", report.Barcode, err))
		ok = false
	}
	if !ok {
		item = UnknownItem(report.Barcode)
	}

	sale := SaleEvent{
		Time:     d.now(),
		Barcode:  report.Barcode,
		Name:     item.Name,
		Price:    item.Price,
		Quantity: report.Quantity,
	}
	d.out.log(zerolog.InfoLevel, LogSale,
		fmt.Sprintf("sale %s %s %s x%d", sale.Barcode, sale.Name, sale.Price, sale.Quantity))
	if d.host != nil {
		d.host.OnSale(ctx, sale)
	}
	return nil
}

func (d *Dispatcher) handleAlarm(ctx context.Context, cmd protocol.Command) error {
	alarm := protocol.ParseAlarm(cmd)
	ev := AlarmEvent{Time: d.now(), Message: alarm.Message, Extra: alarm.Extra}
	d.out.log(zerolog.WarnLevel, LogAlarm, "device alarm: "+alarm.Message)
	if d.host != nil {
		d.host.OnAlarm(ctx, ev)
	}
	return nil
}

// handleReqSync treats REQ_SYNC as the erase acknowledgment when a sync is
// waiting for one, and as a request from the device otherwise
func (d *Dispatcher) handleReqSync(ctx context.Context, _ protocol.Command) error {
	if d.sync == nil {
		return fmt.Errorf("%w: %s", ErrUnhandledCommand, protocol.CmdReqSync)
	}

	err := d.sync.Acknowledge()
	if err == nil || !errors.Is(err, ErrNoSyncAwaiting) {
		return err
	}

	state := d.sync.State()
	if state == SyncTransmitting {
		d.out.log(zerolog.WarnLevel, LogUnhandled, "REQ_SYNC ignored: transmission in progress")
		return nil
	}

	d.out.log(zerolog.InfoLevel, LogReceived, "device requested a catalog sync")
	if d.host == nil || !d.host.ApproveSync(ctx, SyncRequest{Time: d.now()}) {
		d.out.log(zerolog.InfoLevel, LogReceived, "no sync started for device request")
		return nil
	}

	if state == SyncComplete {
		if err := d.sync.AckComplete(); err != nil {
			return err
		}
	}
	items, err := d.catalog.List(ctx)
	if err != nil {
		return fmt.Errorf("list catalog: %w", err)
	}
	return d.sync.Begin(items)
}
