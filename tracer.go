package flatpanel

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"gopkg.in/natefinch/lumberjack.v2"
)

var disabledLogger = zerolog.Nop()

// Tracer is the diagnostic logger owned by one session. Output can be
// switched on and off at runtime; Close releases the underlying sink.
type Tracer struct {
	logger  zerolog.Logger
	enabled atomic.Bool
	closed  atomic.Bool
	sink    io.Closer
}

// NewTracer logs to w and starts enabled. The caller keeps ownership of w.
func NewTracer(w io.Writer, level zerolog.Level) *Tracer {
	t := &Tracer{
		logger: zerolog.New(w).Level(level).With().Timestamp().Str("component", "flatpanel").Logger(),
	}
	t.enabled.Store(true)
	return t
}

// NewTracerFromConfig builds a tracer from cfg. With a file configured the
// output is rotated by lumberjack; otherwise it goes to stderr.
func NewTracerFromConfig(cfg LogConfig) (*Tracer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var w io.Writer = os.Stderr
	var sink io.Closer
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		w, sink = lj, lj
	}

	var out io.Writer = w
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: sink != nil}
	}

	t := NewTracer(out, level)
	t.sink = sink
	if !cfg.Enabled {
		t.Disable()
	}
	return t, nil
}

// NopTracer discards everything.
func NopTracer() *Tracer {
	return NewTracer(io.Discard, zerolog.Disabled)
}

func (t *Tracer) Enable() {
	if t == nil || t.closed.Load() {
		return
	}
	t.enabled.Store(true)
}

func (t *Tracer) Disable() {
	if t == nil {
		return
	}
	t.enabled.Store(false)
}

func (t *Tracer) Enabled() bool {
	return t != nil && t.enabled.Load()
}

// Logger returns the active logger, or a no-op logger while disabled.
func (t *Tracer) Logger() *zerolog.Logger {
	if !t.Enabled() {
		return &disabledLogger
	}
	return &t.logger
}

// Close disables the tracer and releases its sink.
func (t *Tracer) Close() error {
	if t == nil || !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.enabled.Store(false)
	if t.sink != nil {
		return t.sink.Close()
	}
	return nil
}
