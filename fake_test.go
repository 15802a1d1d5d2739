package flatpanel

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeDevice simulates a panel (or any other device) behind one port.
type fakeDevice struct {
	mu sync.Mutex

	// announce is delivered by the first read after each open.
	announce string
	// reply maps a received command to the lines the device sends back.
	// A nil result means the device stays silent.
	reply func(d *fakeDevice, cmd string) []string
	// openErr, if set, is returned by every Open.
	openErr error
	// openErrAfter, if positive, fails every Open once that many succeeded.
	openErrAfter int

	pending   []string
	announced bool
	writes    []string
	pings     int
	opens     int
	closes    int
	open      bool
	settings  []Settings
}

func (d *fakeDevice) snapshotWrites() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.writes...)
}

func (d *fakeDevice) isOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *fakeDevice) pingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pings
}

func (d *fakeDevice) queue(lines ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, lines...)
}

// panelReplies answers like the real firmware, replying with the identity
// on the nth PING and staying silent on earlier ones.
func panelReplies(identityOnPing int, brightness string) func(*fakeDevice, string) []string {
	return func(d *fakeDevice, cmd string) []string {
		switch {
		case cmd == "PING":
			if d.pings >= identityOnPing {
				return []string{"OK:" + DeviceGUID + "\r"}
			}
			return nil
		case cmd == "GETBRIGHTNESS":
			return []string{brightness + "\r"}
		case cmd == "OFF" || len(cmd) > 3 && cmd[:3] == "ON:":
			return []string{"OK:\r"}
		}
		return []string{"NOK:unknown command\r"}
	}
}

type fakeTransport struct {
	dev    *fakeDevice
	closed bool
}

func (t *fakeTransport) WriteLine(line string) error {
	if t.closed {
		return ErrTransportClosed
	}
	d := t.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, line+Separator)
	if line == "PING" {
		d.pings++
	}
	if d.reply != nil {
		d.pending = append(d.pending, d.reply(d, line)...)
	}
	return nil
}

func (t *fakeTransport) ReadLine() (string, error) {
	if t.closed {
		return "", ErrTransportClosed
	}
	d := t.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.announced {
		d.announced = true
		if d.announce != "" {
			return d.announce, nil
		}
	}
	if len(d.pending) == 0 {
		return "", ErrReadTimeout
	}
	line := d.pending[0]
	d.pending = d.pending[1:]
	return line, nil
}

func (t *fakeTransport) ResetInput() error {
	if t.closed {
		return ErrTransportClosed
	}
	t.dev.mu.Lock()
	t.dev.pending = nil
	t.dev.mu.Unlock()
	return nil
}

func (t *fakeTransport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.dev.mu.Lock()
	t.dev.open = false
	t.dev.closes++
	t.dev.mu.Unlock()
	return nil
}

// fakeDialer routes Open calls to fake devices by port name.
type fakeDialer struct {
	mu      sync.Mutex
	order   []string
	devices map[string]*fakeDevice
	portErr error
	opened  []string
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{devices: make(map[string]*fakeDevice)}
}

func (f *fakeDialer) add(port string, d *fakeDevice) *fakeDevice {
	f.order = append(f.order, port)
	f.devices[port] = d
	return d
}

func (f *fakeDialer) openedPorts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

func (f *fakeDialer) Open(port string, s Settings) (Transport, error) {
	f.mu.Lock()
	f.opened = append(f.opened, port)
	d, ok := f.devices[port]
	f.mu.Unlock()
	if !ok {
		return nil, errors.New("no such port")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	if d.openErrAfter > 0 && d.opens >= d.openErrAfter {
		return nil, errors.New("device disappeared")
	}
	if d.open {
		return nil, ErrPortBusy
	}
	d.open = true
	d.opens++
	d.announced = false
	d.pending = nil
	d.settings = append(d.settings, s)
	return &fakeTransport{dev: d}, nil
}

func (f *fakeDialer) Ports() ([]string, error) {
	if f.portErr != nil {
		return nil, f.portErr
	}
	return append([]string(nil), f.order...), nil
}

// noSleep skips the settle delay but still honours cancellation.
func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func withoutSettle() Option {
	return func(o *options) {
		o.sleep = noSleep
	}
}
