package flatpanel

import (
	"time"

	"go.uber.org/atomic"
)

// Metrics tracks connection and command health for one session.
type Metrics struct {
	// Connection Statistics
	ConnectAttempts     atomic.Int64 // Total Connect calls
	SuccessfulConnects  atomic.Int64 // Connect calls that ended connected
	ConnectFailures     atomic.Int64 // Connect calls that ended disconnected
	Disconnections      atomic.Int64 // Open sessions closed by Disconnect
	LastConnectTime     atomic.Int64 // Unix timestamp of last connect
	LastDisconnectTime  atomic.Int64 // Unix timestamp of last disconnect
	ConnectionStartTime atomic.Int64 // When current connection started (ns)

	// Discovery
	PortsProbed       atomic.Int64 // Probe calls
	PortsMatched      atomic.Int64 // Probes that found the panel
	PortsBusy         atomic.Int64 // Probes that could not open a busy port
	OpenFailures      atomic.Int64 // Probes that could not open the port for any other reason
	HandshakeAttempts atomic.Int64 // PING round trips during probes
	HandshakeTimeouts atomic.Int64 // Attempts with no reply in time
	HandshakeMismatch atomic.Int64 // Attempts with a reply that was not the identity token
	HandshakeErrors   atomic.Int64 // Attempts broken by a transport error

	// Command exchange
	Exchanges        atomic.Int64 // Exchange calls
	ExchangeFailures atomic.Int64 // Exchanges that returned a transport error
	ExchangeTimeouts atomic.Int64 // Exchanges that timed out waiting for a reply
	NOKResponses     atomic.Int64 // Parsed replies with NOK status
	BytesWritten     atomic.Int64 // Bytes sent including separators
	BytesRead        atomic.Int64 // Bytes received excluding separators
	TotalExchangeNs  atomic.Int64 // Time spent in exchanges (ns)
	MaxExchangeNs    atomic.Int64 // Slowest exchange (ns)

	// Health Indicators
	ConsecutiveFailures atomic.Int64 // Consecutive failed exchanges
}

// HealthStatus represents the overall health of the connection
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDown      HealthStatus = "down"
)

// MetricsSnapshot is a point-in-time copy of Metrics with derived rates.
type MetricsSnapshot struct {
	Timestamp   time.Time
	IsConnected bool
	ActivePort  string

	ConnectAttempts    int64
	SuccessfulConnects int64
	ConnectSuccessRate float64

	PortsProbed       int64
	PortsMatched      int64
	PortsBusy         int64
	HandshakeAttempts int64
	HandshakeTimeouts int64

	Exchanges           int64
	ExchangeFailures    int64
	NOKResponses        int64
	ExchangeSuccessRate float64
	AverageExchangeTime time.Duration
	MaxExchangeTime     time.Duration
	BytesWritten        int64
	BytesRead           int64
	ConsecutiveFailures int64
	UptimeSeconds       float64
	HealthStatus        HealthStatus
}

func (m *Metrics) recordProbe(r ProbeReport) {
	m.PortsProbed.Inc()
	switch r.Outcome {
	case OutcomeMatched:
		m.PortsMatched.Inc()
	case OutcomePortBusy:
		m.PortsBusy.Inc()
	case OutcomeOpenFailed, OutcomeInvalidPort:
		m.OpenFailures.Inc()
	}
}

func (m *Metrics) recordAttempt(o ProbeOutcome) {
	m.HandshakeAttempts.Inc()
	switch o {
	case OutcomeTimeout:
		m.HandshakeTimeouts.Inc()
	case OutcomeMismatch:
		m.HandshakeMismatch.Inc()
	case OutcomeTransportError:
		m.HandshakeErrors.Inc()
	}
}

func (m *Metrics) recordConnect(ok bool) {
	m.ConnectAttempts.Inc()
	if !ok {
		m.ConnectFailures.Inc()
		return
	}
	now := time.Now()
	m.SuccessfulConnects.Inc()
	m.LastConnectTime.Store(now.Unix())
	m.ConnectionStartTime.Store(now.UnixNano())
	m.ConsecutiveFailures.Store(0)
}

func (m *Metrics) recordDisconnect() {
	m.Disconnections.Inc()
	m.LastDisconnectTime.Store(time.Now().Unix())
	m.ConnectionStartTime.Store(0)
}

func (m *Metrics) recordExchange(written, read int, resp Response, err error, elapsed time.Duration) {
	m.Exchanges.Inc()
	m.BytesWritten.Add(int64(written))
	m.BytesRead.Add(int64(read))
	m.TotalExchangeNs.Add(elapsed.Nanoseconds())
	for {
		cur := m.MaxExchangeNs.Load()
		if elapsed.Nanoseconds() <= cur || m.MaxExchangeNs.CompareAndSwap(cur, elapsed.Nanoseconds()) {
			break
		}
	}

	if err != nil {
		m.ExchangeFailures.Inc()
		if isTimeout(err) {
			m.ExchangeTimeouts.Inc()
		}
		m.ConsecutiveFailures.Inc()
		return
	}
	m.ConsecutiveFailures.Store(0)
	if !resp.OK() {
		m.NOKResponses.Inc()
	}
}

// Snapshot copies the counters and derives rates and health.
func (m *Metrics) Snapshot(isConnected bool, activePort string) MetricsSnapshot {
	s := MetricsSnapshot{
		Timestamp:           time.Now(),
		IsConnected:         isConnected,
		ActivePort:          activePort,
		ConnectAttempts:     m.ConnectAttempts.Load(),
		SuccessfulConnects:  m.SuccessfulConnects.Load(),
		PortsProbed:         m.PortsProbed.Load(),
		PortsMatched:        m.PortsMatched.Load(),
		PortsBusy:           m.PortsBusy.Load(),
		HandshakeAttempts:   m.HandshakeAttempts.Load(),
		HandshakeTimeouts:   m.HandshakeTimeouts.Load(),
		Exchanges:           m.Exchanges.Load(),
		ExchangeFailures:    m.ExchangeFailures.Load(),
		NOKResponses:        m.NOKResponses.Load(),
		MaxExchangeTime:     time.Duration(m.MaxExchangeNs.Load()),
		BytesWritten:        m.BytesWritten.Load(),
		BytesRead:           m.BytesRead.Load(),
		ConsecutiveFailures: m.ConsecutiveFailures.Load(),
	}
	s.ConnectSuccessRate = m.calculateConnectSuccessRate()
	s.ExchangeSuccessRate = m.calculateExchangeSuccessRate()
	s.AverageExchangeTime = m.calculateAverageExchangeTime()
	s.UptimeSeconds = m.calculateUptime(isConnected)
	s.HealthStatus = assessHealthStatus(s)
	return s
}

// Metrics calculation methods
func (m *Metrics) calculateConnectSuccessRate() float64 {
	attempts := m.ConnectAttempts.Load()
	if attempts == 0 {
		return 100.0
	}
	return float64(m.SuccessfulConnects.Load()) / float64(attempts) * 100
}

func (m *Metrics) calculateExchangeSuccessRate() float64 {
	total := m.Exchanges.Load()
	if total == 0 {
		return 100.0
	}
	return float64(total-m.ExchangeFailures.Load()) / float64(total) * 100
}

func (m *Metrics) calculateAverageExchangeTime() time.Duration {
	total := m.Exchanges.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.TotalExchangeNs.Load() / total)
}

func (m *Metrics) calculateUptime(isConnected bool) float64 {
	start := m.ConnectionStartTime.Load()
	if !isConnected || start == 0 {
		return 0.0
	}
	duration := time.Now().UnixNano() - start
	if duration <= 0 {
		return 0.0
	}
	return float64(duration) / float64(time.Second)
}

func assessHealthStatus(s MetricsSnapshot) HealthStatus {
	if !s.IsConnected {
		return HealthStatusDown
	}

	errorRate := 100 - s.ExchangeSuccessRate

	// Check for critical issues
	if errorRate > 50.0 || s.ConsecutiveFailures > 5 {
		return HealthStatusUnhealthy
	}

	// Check for performance degradation
	if errorRate > 10.0 || s.ConsecutiveFailures > 3 {
		return HealthStatusDegraded
	}

	return HealthStatusHealthy
}
