package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"kioskctl/core"
	"kioskctl/host/kiosk"
	"kioskctl/host/serial"
	"kioskctl/host/store"
)

const (
	approvalTimeout = time.Minute
	historySize     = 500
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Interactive session with the kiosk",
		Long: `Connects to the device and reads operator commands from standard input.
Sales and alarms reported by the device are printed as they arrive.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			host := newConsoleHost(a.out)
			history := &core.MemorySink{Limit: historySize}
			k, err := a.newKiosk(ctx, db, host, nil, history)
			if err != nil {
				return err
			}
			defer k.Close()

			if a.cfg.Serial.Device != "" {
				if err := a.connect(k); err != nil {
					fmt.Fprintf(a.out, "Error: %v\n", err)
				}
			}

			r := &repl{app: a, kiosk: k, host: host, db: db, history: history}
			return r.run(ctx, a.in)
		},
	}
}

// consoleHost prints device events and asks the operator to approve
// device-requested syncs
type consoleHost struct {
	out     io.Writer
	asking  atomic.Bool
	answers chan bool
}

func newConsoleHost(out io.Writer) *consoleHost {
	return &consoleHost{out: out, answers: make(chan bool)}
}

func (h *consoleHost) OnSale(_ context.Context, s core.SaleEvent) {
	fmt.Fprintf(h.out, "SALE  %s  %s  %s x%d = %s\n", s.Barcode, s.Name, s.Price, s.Quantity, s.Subtotal())
}

func (h *consoleHost) OnAlarm(_ context.Context, a core.AlarmEvent) {
	fmt.Fprintf(h.out, "ALARM %s\n", a.Message)
}

func (h *consoleHost) ApproveSync(ctx context.Context, _ core.SyncRequest) bool {
	h.asking.Store(true)
	defer h.asking.Store(false)
	fmt.Fprint(h.out, "Device requests a catalog sync. Send catalog now? [y/N] ")

	timer := time.NewTimer(approvalTimeout)
	defer timer.Stop()
	select {
	case ok := <-h.answers:
		return ok
	case <-timer.C:
		fmt.Fprintln(h.out, "\nNo answer, sync request declined")
		return false
	case <-ctx.Done():
		return false
	}
}

// answer delivers a y/n reply if a question is pending
func (h *consoleHost) answer(line string) bool {
	if !h.asking.Load() {
		return false
	}
	ok := strings.EqualFold(line, "y") || strings.EqualFold(line, "yes")
	select {
	case h.answers <- ok:
		return true
	default:
		return false
	}
}

type repl struct {
	app     *app
	kiosk   *kiosk.Kiosk
	host    *consoleHost
	db      *store.SQLite
	history *core.MemorySink
}

var errQuit = errors.New("quit")

func (r *repl) run(ctx context.Context, in io.Reader) error {
	out := r.app.out
	fmt.Fprintln(out, "kioskctl - type 'help' for commands, 'quit' to exit")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if r.host.answer(line) {
			continue
		}

		args, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		if err := r.exec(ctx, args); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

func (r *repl) exec(ctx context.Context, args []string) error {
	out := r.app.out
	switch cmd, rest := args[0], args[1:]; cmd {
	case "quit", "exit", "q":
		return errQuit

	case "help", "?":
		printReplHelp(out)
		return nil

	case "ports":
		return printPorts(out)

	case "connect":
		if len(rest) > 0 {
			r.app.cfg.Serial.Device = rest[0]
		}
		if len(rest) > 1 {
			baud, err := strconv.Atoi(rest[1])
			if err != nil || !serial.ValidBaud(baud) {
				return fmt.Errorf("baud must be one of %v", serial.BaudRates)
			}
			r.app.cfg.Serial.Baud = baud
		}
		return r.app.connect(r.kiosk)

	case "disconnect":
		return r.kiosk.Disconnect()

	case "status":
		printStatus(out, r.kiosk.Status())
		return nil

	case "sync":
		return r.kiosk.Sync(ctx)

	case "cancel":
		return r.kiosk.CancelSync()

	case "ack":
		return r.kiosk.AckSync()

	case "scan":
		if len(rest) != 1 {
			return errors.New("usage: scan <barcode>")
		}
		return r.kiosk.Scan(rest[0])

	case "log":
		n := 20
		if len(rest) > 0 {
			v, err := strconv.Atoi(rest[0])
			if err != nil || v <= 0 {
				return errors.New("usage: log [count]")
			}
			n = v
		}
		printHistory(out, r.history.Events(), n)
		return nil

	case "catalog":
		items, err := r.db.List(ctx)
		if err != nil {
			return err
		}
		printCatalog(out, items)
		return nil

	default:
		return fmt.Errorf("unknown command %q (type 'help' for available commands)", cmd)
	}
}

func printStatus(out io.Writer, st kiosk.Status) {
	device := st.Device
	if device == "" {
		device = "-"
	}
	fmt.Fprintf(out, "Connection: %s (%s)\n", st.Connection, device)
	fmt.Fprintf(out, "Sync:       %s", st.Sync.State)
	if st.Sync.State != core.SyncIdle {
		fmt.Fprintf(out, " %d/%d", st.Sync.Cursor, st.Sync.Total)
	}
	fmt.Fprintln(out)
	if st.Sync.LastErr != nil {
		fmt.Fprintf(out, "Last sync:  %v\n", st.Sync.LastErr)
	}
	if st.LastAlarm != nil {
		fmt.Fprintf(out, "Last alarm: %s at %s\n", st.LastAlarm.Message, st.LastAlarm.Time.Format(time.TimeOnly))
	}
	fmt.Fprintf(out, "Sales:      %d this session\n", st.Sales)
}

// printHistory prints the last n events, including debug traffic the
// console hides without --verbose
func printHistory(out io.Writer, events []core.LogEvent, n int) {
	if len(events) > n {
		events = events[len(events)-n:]
	}
	if len(events) == 0 {
		fmt.Fprintln(out, "No events yet")
		return
	}
	for _, ev := range events {
		fmt.Fprintln(out, formatEvent(ev, " "))
	}
}

func printReplHelp(out io.Writer) {
	fmt.Fprintln(out, "\nAvailable commands:")
	fmt.Fprintln(out, "  ports                     - List serial ports")
	fmt.Fprintln(out, "  connect [device] [baud]   - Open the device")
	fmt.Fprintln(out, "  disconnect                - Close the device")
	fmt.Fprintln(out, "  status                    - Show connection and sync state")
	fmt.Fprintln(out, "  sync                      - Send the catalog to the device")
	fmt.Fprintln(out, "  cancel                    - Abandon the sync in progress")
	fmt.Fprintln(out, "  ack                       - Acknowledge a completed sync")
	fmt.Fprintln(out, "  scan <barcode>            - Simulate a scan")
	fmt.Fprintln(out, "  log [count]               - Show recent session events")
	fmt.Fprintln(out, "  catalog                   - List local products")
	fmt.Fprintln(out, "  quit/exit/q               - Exit")
	fmt.Fprintln(out)
}
