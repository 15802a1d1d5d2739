package flatpanel

import (
	"context"
	"errors"
	"strings"
)

// ProbeOutcome classifies one handshake attempt, or the open stage of a probe.
type ProbeOutcome int

const (
	OutcomeTimeout ProbeOutcome = iota
	OutcomeMatched
	OutcomeMismatch
	OutcomeTransportError
	OutcomeOpenFailed
	OutcomePortBusy
	OutcomeInvalidPort
	OutcomeCancelled
)

func (o ProbeOutcome) String() string {
	switch o {
	case OutcomeTimeout:
		return "timeout"
	case OutcomeMatched:
		return "matched"
	case OutcomeMismatch:
		return "mismatch"
	case OutcomeTransportError:
		return "transport-error"
	case OutcomeOpenFailed:
		return "open-failed"
	case OutcomePortBusy:
		return "port-busy"
	case OutcomeInvalidPort:
		return "invalid-port"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ProbeReport is the result of probing one port.
type ProbeReport struct {
	Port     string
	Matched  bool
	Attempts int          // handshake attempts performed
	Outcome  ProbeOutcome // outcome of the last stage reached
	Reply    string       // last trimmed reply, if any
}

// Discovery finds the port that hosts the panel. Every probe uses its own
// temporary transport which is closed before the probe returns.
type Discovery struct {
	dialer Dialer
	opts   options
}

// NewDiscovery returns a Discovery that opens ports through dialer.
func NewDiscovery(dialer Dialer, opts ...Option) *Discovery {
	return newDiscovery(dialer, buildOptions(opts))
}

func newDiscovery(dialer Dialer, o options) *Discovery {
	return &Discovery{dialer: dialer, opts: o}
}

// Resolve returns the preferred port when it answers the handshake. Only
// when it does not, or none was given, and autoDetect is set, are the
// enumerated ports probed in platform order.
func (d *Discovery) Resolve(ctx context.Context, preferredPort string, autoDetect bool) (string, bool) {
	log := d.opts.tracer.Logger()

	if preferredPort != "" {
		if d.Probe(ctx, preferredPort) {
			return preferredPort, true
		}
		log.Info().Str("port", preferredPort).Msg("preferred port did not answer the handshake")
	}

	if !autoDetect {
		return "", false
	}

	ports, err := d.dialer.Ports()
	if err != nil {
		log.Warn().Err(err).Msg("failed to enumerate serial ports")
		return "", false
	}
	log.Debug().Strs("ports", ports).Msg("scanning serial ports")

	for _, port := range ports {
		if ctx.Err() != nil {
			log.Debug().Err(ctx.Err()).Msg("port scan cancelled")
			return "", false
		}
		if d.Probe(ctx, port) {
			log.Info().Str("port", port).Msg("found flat panel")
			return port, true
		}
	}

	log.Info().Int("candidates", len(ports)).Msg("no flat panel found on any port")
	return "", false
}

// Probe reports whether the panel answers the handshake on portName.
func (d *Discovery) Probe(ctx context.Context, portName string) bool {
	return d.Handshake(ctx, portName).Matched
}

// Handshake probes portName and reports how far it got. Failures are folded
// into the report and never returned as errors.
func (d *Discovery) Handshake(ctx context.Context, portName string) (report ProbeReport) {
	log := d.opts.tracer.Logger().With().Str("port", portName).Logger()
	report = ProbeReport{Port: portName, Outcome: OutcomeTimeout}
	defer func() {
		d.opts.metrics.recordProbe(report)
		log.Debug().
			Bool("matched", report.Matched).
			Int("attempts", report.Attempts).
			Stringer("outcome", report.Outcome).
			Msg("probe finished")
	}()

	if err := checkPortName(portName); err != nil {
		report.Outcome = OutcomeInvalidPort
		return report
	}

	t, err := d.dialer.Open(portName, d.opts.settings.WithReadTimeout(d.opts.probeTimeout))
	if err != nil {
		report.Outcome = OutcomeOpenFailed
		if IsPortBusy(err) {
			report.Outcome = OutcomePortBusy
		}
		log.Debug().Err(err).Msg("skipping port (can't open)")
		return report
	}
	defer func() {
		if err := t.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close probe port")
		}
	}()

	if err := d.opts.sleep(ctx, d.opts.settleDelay); err != nil {
		report.Outcome = OutcomeCancelled
		return report
	}
	if err := t.ResetInput(); err != nil {
		log.Debug().Err(err).Msg("failed to discard buffered input")
	}

	for attempt := 1; attempt <= d.opts.attempts; attempt++ {
		if ctx.Err() != nil {
			report.Outcome = OutcomeCancelled
			break
		}

		report.Attempts = attempt
		report.Outcome, report.Reply = d.attempt(t)
		d.opts.metrics.recordAttempt(report.Outcome)

		if report.Outcome == OutcomeMatched {
			report.Matched = true
			break
		}
		log.Debug().Int("attempt", attempt).Stringer("outcome", report.Outcome).Str("reply", report.Reply).Msg("handshake miss")
	}

	return report
}

// attempt performs one drain-ping-read round.
func (d *Discovery) attempt(t Transport) (ProbeOutcome, string) {
	// The panel announces itself once after power-up; nothing pending is normal.
	if line, err := t.ReadLine(); err == nil {
		d.opts.tracer.Logger().Debug().Str("line", stripLine(line)).Msg("drained pending line")
	}

	if err := t.WriteLine(CmdPing.String()); err != nil {
		return OutcomeTransportError, ""
	}

	line, err := t.ReadLine()
	switch {
	case errors.Is(err, ErrReadTimeout):
		return OutcomeTimeout, ""
	case err != nil:
		return OutcomeTransportError, ""
	}

	reply := strings.TrimSpace(line)
	if d.opts.identity.Matches(reply) {
		return OutcomeMatched, reply
	}
	return OutcomeMismatch, reply
}
