package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"kioskctl/core"
	"kioskctl/host/config"
	"kioskctl/host/kiosk"
	"kioskctl/host/logger"
	"kioskctl/host/serial"
	"kioskctl/host/store"
)

const defaultConfigFile = "kiosk.toml"

// app carries state shared by every subcommand
type app struct {
	in  io.Reader
	out io.Writer

	configFile string
	device     string
	baud       int
	driver     string
	dbPath     string
	logLevel   string
	jsonLog    bool
	verbose    bool

	cfg *config.Config
	log *logger.Logger
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: in, out: &lockedWriter{w: out}}

	cmd := &cobra.Command{
		Use:           "kioskctl",
		Short:         "Host controller for an unattended retail kiosk",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "Path to TOML config file (default ./kiosk.toml if present)")
	flags.StringVarP(&a.device, "device", "d", "", "Serial device, e.g. /dev/ttyUSB0 or COM3")
	flags.IntVarP(&a.baud, "baud", "b", 0, fmt.Sprintf("Baud rate, one of %v", serial.BaudRates))
	flags.StringVar(&a.driver, "driver", "", "Serial driver: native or tarm")
	flags.StringVar(&a.dbPath, "db", "", "Catalog and sales database file")
	flags.StringVar(&a.logLevel, "log-level", "", "Diagnostic log level (debug, info, warn, error)")
	flags.BoolVar(&a.jsonLog, "json", false, "Write diagnostic logs as JSON")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Show every line sent and received")

	cmd.AddCommand(
		newPortsCmd(a),
		newRunCmd(a),
		newSyncCmd(a),
		newScanCmd(a),
		newCatalogCmd(a),
		newSalesCmd(a),
	)
	return cmd
}

// init loads configuration and applies flag overrides
func (a *app) init(cmd *cobra.Command) error {
	path := a.configFile
	if path == "" && config.FileExists(defaultConfigFile) {
		path = defaultConfigFile
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("device") {
		cfg.Serial.Device = a.device
	}
	if flags.Changed("baud") {
		cfg.Serial.Baud = a.baud
	}
	if flags.Changed("driver") {
		cfg.Serial.Driver = a.driver
	}
	if flags.Changed("db") {
		cfg.Store.Path = a.dbPath
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if a.jsonLog {
		cfg.Log.Format = "json"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New("kioskctl", logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	cmd.SetContext(log.WithContext(cmd.Context()))
	return nil
}

func (a *app) openStore(ctx context.Context) (*store.SQLite, error) {
	return store.Open(ctx, a.cfg.Store.Path, logger.FromContext(ctx).Component("store"))
}

// newKiosk builds a kiosk over db and starts its event loop
func (a *app) newKiosk(ctx context.Context, db *store.SQLite, host core.Host, onProgress func(core.SyncProgress), extra ...core.LogSink) (*kiosk.Kiosk, error) {
	sink := append(core.MultiSink{
		&consoleSink{out: a.out, verbose: a.verbose},
		core.NewZerologSink(a.log.Component("session")),
	}, extra...)
	k := kiosk.New(kiosk.Options{
		Catalog:       db,
		Sales:         db,
		Host:          host,
		Sink:          sink,
		Log:           a.log.Logger,
		PollInterval:  a.cfg.Serial.PollInterval,
		RowDelay:      a.cfg.Sync.RowDelay,
		ProgressEvery: a.cfg.Sync.ProgressEvery,
		OnProgress:    onProgress,
	})
	if err := k.Start(ctx); err != nil {
		return nil, err
	}
	return k, nil
}

// connect opens the configured device
func (a *app) connect(k *kiosk.Kiosk) error {
	if a.cfg.Serial.Device == "" {
		return fmt.Errorf("no serial device configured; use --device or [serial] device (see 'kioskctl ports')")
	}
	return k.Connect(a.cfg.SerialPort())
}

// lockedWriter serializes writes from the REPL and the kiosk event loop
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// consoleSink prints operator log events to the terminal
type consoleSink struct {
	out     io.Writer
	verbose bool
}

func (c *consoleSink) Log(ev core.LogEvent) {
	if ev.Level < zerolog.InfoLevel && !c.verbose {
		return
	}
	marker := " "
	switch {
	case ev.Level >= zerolog.ErrorLevel:
		marker = "!"
	case ev.Level == zerolog.WarnLevel:
		marker = "*"
	}
	fmt.Fprintln(c.out, formatEvent(ev, marker))
}

func formatEvent(ev core.LogEvent, marker string) string {
	return fmt.Sprintf("[%s] %s %-16s %s", ev.Time.Format(time.TimeOnly), marker, ev.Kind, ev.Text)
}
