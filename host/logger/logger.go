// Package logger wraps zerolog for kioskctl's diagnostic output.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger embeds zerolog.Logger so the full zerolog API is available
type Logger struct {
	zerolog.Logger
}

// Options selects level, format and destination
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

// New builds a logger tagged with role. Format "json" writes one JSON
// object per line; anything else writes a human console format.
func New(role string, opts Options) (*Logger, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	l := zerolog.New(out).Level(level).With().
		Str("role", role).
		Timestamp().
		Logger()
	return &Logger{l}, nil
}

// Nop returns a Logger that discards everything
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// Component returns a child logger tagged with a component name
func (l *Logger) Component(name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// WithContext attaches l to ctx
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return l.Logger.WithContext(ctx)
}

// FromContext returns the logger attached to ctx, or a disabled one
func FromContext(ctx context.Context) *Logger {
	return &Logger{*log.Ctx(ctx)}
}
