package flatpanel

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestProbeSucceedsOnNthAttempt(t *testing.T) {
	for n := 1; n <= DefaultHandshakeAttempts; n++ {
		dialer := newFakeDialer()
		dev := dialer.add("COM3", &fakeDevice{announce: "INITIALIZED\r", reply: panelReplies(n, "OK:0")})
		metrics := &Metrics{}
		d := NewDiscovery(dialer, withoutSettle(), WithMetrics(metrics))

		report := d.Handshake(context.Background(), "COM3")
		if !report.Matched {
			t.Fatalf("n=%d: expected match, got outcome %v", n, report.Outcome)
		}
		if report.Attempts != n {
			t.Fatalf("n=%d: expected %d attempts, got %d", n, n, report.Attempts)
		}
		if dev.pingCount() != n {
			t.Fatalf("n=%d: expected %d PINGs, got %d", n, n, dev.pingCount())
		}
		if dev.isOpen() {
			t.Fatalf("n=%d: probe left the port open", n)
		}
		if got := metrics.HandshakeAttempts.Load(); got != int64(n) {
			t.Fatalf("n=%d: expected %d recorded attempts, got %d", n, n, got)
		}
	}
}

func TestProbeGivesUpAfterFourAttempts(t *testing.T) {
	dialer := newFakeDialer()
	dev := dialer.add("COM3", &fakeDevice{reply: panelReplies(DefaultHandshakeAttempts+1, "OK:0")})
	d := NewDiscovery(dialer, withoutSettle())

	report := d.Handshake(context.Background(), "COM3")
	if report.Matched {
		t.Fatal("expected no match")
	}
	if report.Attempts != DefaultHandshakeAttempts {
		t.Fatalf("expected %d attempts, got %d", DefaultHandshakeAttempts, report.Attempts)
	}
	if report.Outcome != OutcomeTimeout {
		t.Fatalf("expected timeout outcome, got %v", report.Outcome)
	}
	if dev.isOpen() {
		t.Fatal("probe left the port open")
	}
	if dev.closes != 1 {
		t.Fatalf("expected exactly one close, got %d", dev.closes)
	}
}

func TestProbeRejectsWrongIdentity(t *testing.T) {
	dialer := newFakeDialer()
	dev := dialer.add("COM4", &fakeDevice{reply: func(*fakeDevice, string) []string {
		return []string{"OK:00000000-0000-0000-0000-000000000000"}
	}})
	d := NewDiscovery(dialer, withoutSettle())

	report := d.Handshake(context.Background(), "COM4")
	if report.Matched {
		t.Fatal("foreign identity must not match")
	}
	if report.Outcome != OutcomeMismatch {
		t.Fatalf("expected mismatch, got %v", report.Outcome)
	}
	if dev.pingCount() != DefaultHandshakeAttempts {
		t.Fatalf("expected %d PINGs, got %d", DefaultHandshakeAttempts, dev.pingCount())
	}
}

func TestProbeTrimsReplyWhitespace(t *testing.T) {
	dialer := newFakeDialer()
	dialer.add("COM3", &fakeDevice{reply: func(*fakeDevice, string) []string {
		return []string{"  OK:" + DeviceGUID + " \r"}
	}})
	d := NewDiscovery(dialer, withoutSettle())

	if !d.Probe(context.Background(), "COM3") {
		t.Fatal("expected trimmed reply to match")
	}
}

func TestProbeBusyPortIsNegative(t *testing.T) {
	dialer := newFakeDialer()
	dialer.add("COM3", &fakeDevice{openErr: ErrPortBusy})
	d := NewDiscovery(dialer, withoutSettle())

	report := d.Handshake(context.Background(), "COM3")
	if report.Matched {
		t.Fatal("busy port must not match")
	}
	if report.Outcome != OutcomePortBusy {
		t.Fatalf("expected port-busy, got %v", report.Outcome)
	}
	if report.Attempts != 0 {
		t.Fatalf("expected no attempts, got %d", report.Attempts)
	}
}

func TestProbeOpenFailureIsNegative(t *testing.T) {
	dialer := newFakeDialer()
	dialer.add("COM3", &fakeDevice{openErr: errors.New("permission denied")})
	d := NewDiscovery(dialer, withoutSettle())

	report := d.Handshake(context.Background(), "COM3")
	if report.Matched || report.Outcome != OutcomeOpenFailed {
		t.Fatalf("expected open-failed, got %+v", report)
	}
}

func TestProbeInvalidPortName(t *testing.T) {
	dialer := newFakeDialer()
	d := NewDiscovery(dialer, withoutSettle())

	report := d.Handshake(context.Background(), "/dev/../etc/passwd")
	if report.Outcome != OutcomeInvalidPort {
		t.Fatalf("expected invalid-port, got %v", report.Outcome)
	}
	if len(dialer.openedPorts()) != 0 {
		t.Fatal("invalid port name must not be opened")
	}
}

func TestProbeUsesShortReadTimeout(t *testing.T) {
	dialer := newFakeDialer()
	dev := dialer.add("COM3", &fakeDevice{reply: panelReplies(1, "OK:0")})
	d := NewDiscovery(dialer, withoutSettle())
	d.Probe(context.Background(), "COM3")

	if len(dev.settings) != 1 {
		t.Fatalf("expected one open, got %d", len(dev.settings))
	}
	s := dev.settings[0]
	if s.ReadTimeout != ProbeReadTimeout {
		t.Fatalf("expected probe timeout %v, got %v", ProbeReadTimeout, s.ReadTimeout)
	}
	if s.BaudRate != Baud57600 || s.DataBits != DataBits8 || s.Parity != ParityNone || s.StopBits != StopBits1 {
		t.Fatalf("unexpected line settings: %+v", s)
	}
}

func TestProbeWaitsForSettleDelay(t *testing.T) {
	dialer := newFakeDialer()
	dialer.add("COM3", &fakeDevice{reply: panelReplies(1, "OK:0")})

	var slept []time.Duration
	d := NewDiscovery(dialer, func(o *options) {
		o.sleep = func(ctx context.Context, dur time.Duration) error {
			slept = append(slept, dur)
			return nil
		}
	})
	d.Probe(context.Background(), "COM3")

	if len(slept) != 1 || slept[0] != DefaultSettleDelay {
		t.Fatalf("expected one settle of %v, got %v", DefaultSettleDelay, slept)
	}
}

func TestProbeCancelledDuringSettle(t *testing.T) {
	dialer := newFakeDialer()
	dev := dialer.add("COM3", &fakeDevice{reply: panelReplies(1, "OK:0")})
	d := NewDiscovery(dialer, withoutSettle())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := d.Handshake(ctx, "COM3")
	if report.Outcome != OutcomeCancelled {
		t.Fatalf("expected cancelled, got %v", report.Outcome)
	}
	if dev.isOpen() {
		t.Fatal("cancelled probe left the port open")
	}
}

func TestResolvePreferredPortSkipsScan(t *testing.T) {
	dialer := newFakeDialer()
	dialer.add("COM1", &fakeDevice{reply: panelReplies(1, "OK:0")})
	dialer.add("COM5", &fakeDevice{reply: panelReplies(1, "OK:0")})
	d := NewDiscovery(dialer, withoutSettle())

	port, ok := d.Resolve(context.Background(), "COM5", true)
	if !ok || port != "COM5" {
		t.Fatalf("expected COM5, got %q ok=%v", port, ok)
	}
	if opened := dialer.openedPorts(); len(opened) != 1 || opened[0] != "COM5" {
		t.Fatalf("expected only COM5 to be opened, got %v", opened)
	}
}

func TestResolveAutoDetectInEnumerationOrder(t *testing.T) {
	dialer := newFakeDialer()
	dialer.add("/dev/ttyUSB1", &fakeDevice{})
	dialer.add("/dev/ttyUSB0", &fakeDevice{openErr: ErrPortBusy})
	dialer.add("/dev/ttyACM0", &fakeDevice{reply: panelReplies(2, "OK:0")})
	dialer.add("/dev/ttyACM1", &fakeDevice{reply: panelReplies(1, "OK:0")})
	d := NewDiscovery(dialer, withoutSettle())

	port, ok := d.Resolve(context.Background(), "", true)
	if !ok || port != "/dev/ttyACM0" {
		t.Fatalf("expected /dev/ttyACM0, got %q ok=%v", port, ok)
	}
	want := []string{"/dev/ttyUSB1", "/dev/ttyUSB0", "/dev/ttyACM0"}
	opened := dialer.openedPorts()
	if len(opened) != len(want) {
		t.Fatalf("expected %v opened, got %v", want, opened)
	}
	for i := range want {
		if opened[i] != want[i] {
			t.Fatalf("expected %v opened, got %v", want, opened)
		}
	}
}

func TestResolvePreferredFailsFallsBackToScan(t *testing.T) {
	dialer := newFakeDialer()
	dialer.add("COM2", &fakeDevice{reply: panelReplies(1, "OK:0")})
	dialer.add("COM7", &fakeDevice{})
	d := NewDiscovery(dialer, withoutSettle())

	port, ok := d.Resolve(context.Background(), "COM7", true)
	if !ok || port != "COM2" {
		t.Fatalf("expected COM2, got %q ok=%v", port, ok)
	}
}

func TestResolveWithoutAutoDetect(t *testing.T) {
	dialer := newFakeDialer()
	dialer.add("COM2", &fakeDevice{reply: panelReplies(1, "OK:0")})
	d := NewDiscovery(dialer, withoutSettle())

	if port, ok := d.Resolve(context.Background(), "", false); ok || port != "" {
		t.Fatalf("expected nothing, got %q ok=%v", port, ok)
	}
	if len(dialer.openedPorts()) != 0 {
		t.Fatal("no port should be opened without a preference or auto-detect")
	}
}

func TestResolveCancelledBetweenPorts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dialer := newFakeDialer()
	dialer.add("COM1", &fakeDevice{reply: func(d *fakeDevice, cmd string) []string {
		if cmd == "PING" {
			cancel()
		}
		return nil
	}})
	dialer.add("COM2", &fakeDevice{reply: panelReplies(1, "OK:0")})
	d := NewDiscovery(dialer, withoutSettle())

	if port, ok := d.Resolve(ctx, "", true); ok || port != "" {
		t.Fatalf("expected no port after cancellation, got %q ok=%v", port, ok)
	}
	if opened := dialer.openedPorts(); len(opened) != 1 || opened[0] != "COM1" {
		t.Fatalf("expected the scan to stop after COM1, got %v", opened)
	}
}

func TestResolveEnumerationFailure(t *testing.T) {
	dialer := newFakeDialer()
	dialer.portErr = errors.New("enumeration broken")
	d := NewDiscovery(dialer, withoutSettle())

	if _, ok := d.Resolve(context.Background(), "", true); ok {
		t.Fatal("expected no port when enumeration fails")
	}
}

func TestResolveUsesConfiguredIdentity(t *testing.T) {
	const guid = "0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0"
	id, err := NewIdentity(guid)
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}

	dialer := newFakeDialer()
	dialer.add("COM1", &fakeDevice{reply: panelReplies(1, "OK:0")})
	dialer.add("COM2", &fakeDevice{reply: func(*fakeDevice, string) []string { return []string{"OK:" + guid} }})
	d := NewDiscovery(dialer, withoutSettle(), WithIdentity(id))

	port, ok := d.Resolve(context.Background(), "", true)
	if !ok || port != "COM2" {
		t.Fatalf("expected COM2, got %q ok=%v", port, ok)
	}
}
