package flatpanel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// ConnectResult is the outcome of one Connect call.
type ConnectResult struct {
	IsConnected bool
	ComPort     string
}

// Session owns the single live connection to the panel. All public methods
// are serialised: the protocol is strictly request-then-response.
type Session struct {
	dialer    Dialer
	discovery *Discovery
	opts      options

	mu         sync.Mutex
	transport  Transport
	connected  atomic.Bool
	activePort atomic.String
}

// NewSession returns a disconnected session that opens ports through dialer.
func NewSession(dialer Dialer, opts ...Option) *Session {
	o := buildOptions(opts)
	return &Session{
		dialer:    dialer,
		discovery: newDiscovery(dialer, o),
		opts:      o,
	}
}

// Connect resolves a port, opens the session transport on it and consumes
// the panel's readiness line. It never fails; every failure is reported as
// a disconnected result.
func (s *Session) Connect(ctx context.Context, preferredPort string, autoDetect bool) ConnectResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.opts.tracer.Logger()
	log.Info().Str("preferred_port", preferredPort).Bool("auto_detect", autoDetect).Msg("connect called")

	// The session's own handle would make the port look busy to the probe.
	if err := s.closeWithoutLock(); err != nil {
		log.Warn().Err(err).Msg("failed to close previous connection")
	}

	port, ok := s.discovery.Resolve(ctx, preferredPort, autoDetect)
	if !ok {
		s.opts.metrics.recordConnect(false)
		log.Info().Msg("no port resolved")
		return ConnectResult{}
	}

	t, err := s.dialer.Open(port, s.opts.settings)
	if err != nil {
		s.opts.metrics.recordConnect(false)
		log.Error().Err(err).Str("port", port).Msg("failed to open session port")
		return ConnectResult{}
	}

	// The content of this line is not checked; only the handshake validates
	// identity. A delayed or missing line costs one read timeout here.
	line, err := t.ReadLine()
	if err != nil {
		log.Debug().Err(err).Str("port", port).Msg("no readiness line after open")
	} else {
		log.Debug().Str("port", port).Str("line", stripLine(line)).Msg("readiness line consumed")
	}

	s.transport = t
	s.activePort.Store(port)
	s.connected.Store(true)
	s.opts.metrics.recordConnect(true)
	log.Info().Str("port", port).Msg("connected")

	return ConnectResult{IsConnected: true, ComPort: port}
}

// Disconnect closes the transport. Calling it while disconnected is a no-op.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.opts.tracer.Logger().Info().Msg("disconnect called")
	return s.closeWithoutLock()
}

// Connected reports whether the session holds a confirmed connection.
func (s *Session) Connected() bool {
	return s.connected.Load()
}

// ActivePort is the connected port name, empty when disconnected.
func (s *Session) ActivePort() string {
	return s.activePort.Load()
}

// Brightness asks the panel for its brightness. NOK replies and payloads
// that are not integers yield 0 with a nil error. A non-nil error is
// returned only when the exchange itself failed, again with value 0.
func (s *Session) Brightness() (int, error) {
	return s.CommandInt(CmdGetBrightness)
}

// SetBrightness sends OFF for 0 and ON:<value> otherwise. The value is not
// range checked. One reply line is consumed to keep the stream aligned; its
// status is only logged.
func (s *Session) SetBrightness(value int) error {
	return s.CommandBlind(BrightnessCommand(value))
}

// CommandBlind sends cmd and discards the reply line.
func (s *Session) CommandBlind(cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.exchangeWithoutLock(cmd)
	if err != nil {
		return err
	}
	if !resp.OK() {
		s.opts.tracer.Logger().Warn().Stringer("command", cmd).Stringer("response", resp).Msg("panel rejected command")
	}
	return nil
}

// CommandBool reports whether the panel answered cmd with OK.
func (s *Session) CommandBool(cmd Command) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.exchangeWithoutLock(cmd)
	if err != nil {
		return false, err
	}
	return resp.OK(), nil
}

// CommandString returns the payload of an OK reply, or "" for NOK.
func (s *Session) CommandString(cmd Command) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.exchangeWithoutLock(cmd)
	if err != nil {
		return "", err
	}
	return resp.Payload, nil
}

// CommandInt returns the payload of an OK reply as an integer. NOK replies
// and non-integer payloads yield 0.
func (s *Session) CommandInt(cmd Command) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp, err := s.exchangeWithoutLock(cmd)
	if err != nil {
		return 0, err
	}
	value, ok := resp.Int()
	if !ok {
		s.opts.tracer.Logger().Warn().Stringer("command", cmd).Stringer("response", resp).Msg("no integer in reply")
		return 0, nil
	}
	return value, nil
}

// Exchange sends cmd and parses one reply line. Transport failures,
// including the read timeout, are returned to the caller.
func (s *Session) Exchange(cmd Command) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.exchangeWithoutLock(cmd)
}

// Metrics returns a snapshot of the session counters.
func (s *Session) Metrics() MetricsSnapshot {
	return s.opts.metrics.Snapshot(s.Connected(), s.ActivePort())
}

// Discovery exposes the port discovery the session delegates to.
func (s *Session) Discovery() *Discovery {
	return s.discovery
}

// Close disconnects and releases the tracer.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.closeWithoutLock()
	if e := s.opts.tracer.Close(); e != nil {
		err = errors.Join(err, e)
	}
	return err
}

// exchangeWithoutLock assumes the mutex is already held by the caller
func (s *Session) exchangeWithoutLock(cmd Command) (resp Response, err error) {
	if s.transport == nil || !s.connected.Load() {
		return Response{}, ErrNotConnected
	}

	log := s.opts.tracer.Logger()
	start := time.Now()
	var line string
	defer func() {
		s.opts.metrics.recordExchange(len(cmd.frame()), len(line), resp, err, time.Since(start))
	}()

	if err = s.transport.WriteLine(cmd.String()); err != nil {
		log.Error().Err(err).Stringer("command", cmd).Msg("send failed")
		return Response{}, fmt.Errorf("sending %s: %w", cmd, err)
	}

	line, err = s.transport.ReadLine()
	if err != nil {
		log.Error().Err(err).Stringer("command", cmd).Msg("no reply")
		return Response{}, fmt.Errorf("awaiting reply to %s: %w", cmd, err)
	}

	resp = ParseResponse(stripLine(line))
	log.Debug().Stringer("command", cmd).Str("raw", stripLine(line)).Stringer("response", resp).Msg("exchange")
	return resp, nil
}

// closeWithoutLock assumes the mutex is already held by the caller
func (s *Session) closeWithoutLock() error {
	t := s.transport
	wasConnected := s.connected.Load()
	s.transport = nil
	s.connected.Store(false)
	s.activePort.Store("")
	if t == nil {
		return nil
	}
	if wasConnected {
		s.opts.metrics.recordDisconnect()
	}
	return t.Close()
}
