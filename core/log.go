package core

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LogKind tags a log event so the status surface can tell failures from progress
type LogKind string

const (
	LogConnection       LogKind = "connection"
	LogConnectionFailed LogKind = "connection_failed"
	LogSent             LogKind = "sent"
	LogReceived         LogKind = "received"
	LogRaw              LogKind = "raw"
	LogUnhandled        LogKind = "unhandled"
	LogFieldError       LogKind = "field_error"
	LogSale             LogKind = "sale"
	LogAlarm            LogKind = "alarm"
	LogSyncStarted      LogKind = "sync_started"
	LogSyncProgress     LogKind = "sync_progress"
	LogSyncComplete     LogKind = "sync_complete"
	LogSyncAborted      LogKind = "sync_aborted"
	LogSyncCancelled    LogKind = "sync_cancelled"
	LogWriteError       LogKind = "write_error"
	LogReadError        LogKind = "read_error"
)

// LogEvent is one human-readable line for the operator
type LogEvent struct {
	Time   time.Time
	Level  zerolog.Level
	Source string
	Kind   LogKind
	Text   string
}

// LogSink consumes log events. Implementations must be safe for concurrent use.
type LogSink interface {
	Log(ev LogEvent)
}

// LogSinkFunc adapts a function to LogSink
type LogSinkFunc func(ev LogEvent)

func (f LogSinkFunc) Log(ev LogEvent) { f(ev) }

// NopSink discards everything
type NopSink struct{}

func (NopSink) Log(LogEvent) {}

// ZerologSink writes log events to a zerolog logger
type ZerologSink struct {
	log zerolog.Logger
}

func NewZerologSink(log zerolog.Logger) *ZerologSink {
	return &ZerologSink{log: log}
}

func (s *ZerologSink) Log(ev LogEvent) {
	s.log.WithLevel(ev.Level).
		Time("at", ev.Time).
		Str("source", ev.Source).
		Str("kind", string(ev.Kind)).
		Msg(ev.Text)
}

// MultiSink fans each event out to every sink
type MultiSink []LogSink

func (m MultiSink) Log(ev LogEvent) {
	for _, s := range m {
		if s != nil {
			s.Log(ev)
		}
	}
}

// MemorySink keeps events in memory for the REPL history and tests.
// With a positive Limit only the most recent Limit events are kept.
type MemorySink struct {
	Limit int

	mu     sync.Mutex
	events []LogEvent
}

func (m *MemorySink) Log(ev LogEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	if m.Limit > 0 && len(m.events) > m.Limit {
		m.events = append(m.events[:0], m.events[len(m.events)-m.Limit:]...)
	}
}

// Events returns a copy of everything logged so far
func (m *MemorySink) Events() []LogEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LogEvent, len(m.events))
	copy(out, m.events)
	return out
}

// Kinds returns the kinds logged so far, in order
func (m *MemorySink) Kinds() []LogKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LogKind, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Kind
	}
	return out
}

// emitter stamps and forwards events for one source
type emitter struct {
	sink   LogSink
	source string
}

func (e emitter) log(level zerolog.Level, kind LogKind, text string) {
	if e.sink == nil {
		return
	}
	e.sink.Log(LogEvent{Time: time.Now(), Level: level, Source: e.source, Kind: kind, Text: text})
}
