package flatpanel

import (
	"context"
	"time"
)

const (
	// DefaultHandshakeAttempts is the initial PING plus three retries.
	DefaultHandshakeAttempts = 4
	// DefaultSettleDelay lets the panel's UART and bootloader settle after
	// the port is opened.
	DefaultSettleDelay = 1000 * time.Millisecond
)

type options struct {
	identity     Identity
	attempts     int
	settleDelay  time.Duration
	probeTimeout time.Duration
	settings     Settings
	tracer       *Tracer
	metrics      *Metrics
	sleep        func(ctx context.Context, d time.Duration) error
}

func defaultOptions() options {
	return options{
		identity:     DefaultIdentity(),
		attempts:     DefaultHandshakeAttempts,
		settleDelay:  DefaultSettleDelay,
		probeTimeout: ProbeReadTimeout,
		settings:     DefaultSettings(),
		sleep:        sleepContext,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracer == nil {
		o.tracer = NopTracer()
	}
	if o.metrics == nil {
		o.metrics = &Metrics{}
	}
	if o.attempts < 1 {
		o.attempts = 1
	}
	return o
}

// Option configures a Discovery or a Session.
type Option func(*options)

// WithIdentity sets the identity token the handshake must see.
func WithIdentity(id Identity) Option {
	return func(o *options) {
		o.identity = id
	}
}

// WithHandshakeAttempts sets the total number of PING attempts per probe.
func WithHandshakeAttempts(n int) Option {
	return func(o *options) {
		o.attempts = n
	}
}

// WithSettleDelay sets the pause between opening a probe port and the first PING.
func WithSettleDelay(d time.Duration) Option {
	return func(o *options) {
		o.settleDelay = d
	}
}

// WithProbeReadTimeout sets the per-read timeout used while probing.
func WithProbeReadTimeout(d time.Duration) Option {
	return func(o *options) {
		o.probeTimeout = d
	}
}

// WithSettings sets the line parameters of the session transport. Probes
// use the same parameters with the probe read timeout.
func WithSettings(s Settings) Option {
	return func(o *options) {
		o.settings = s
	}
}

// WithTracer injects the diagnostic logger. A Session takes ownership and
// closes it in Close.
func WithTracer(t *Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithMetrics shares a Metrics instance.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
