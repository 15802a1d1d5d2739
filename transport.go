package flatpanel

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	gobug "go.bug.st/serial"
)

// maxLineSize caps a single response line; the panel never sends more than a
// few dozen bytes.
const maxLineSize = 256

// Transport is a line-oriented connection to one serial port.
type Transport interface {
	// WriteLine transmits line followed by the separator.
	WriteLine(line string) error

	// ReadLine blocks until one separator-terminated line arrives or the
	// read timeout elapses, in which case ErrReadTimeout is returned. The
	// returned line excludes the separator.
	ReadLine() (string, error)

	// ResetInput discards any bytes received but not yet read.
	ResetInput() error

	// Close releases the port. It is safe to call multiple times.
	Close() error
}

// Dialer opens transports and enumerates the ports it could open.
type Dialer interface {
	Open(portName string, s Settings) (Transport, error)
	Ports() ([]string, error)
}

// SerialPort abstracts the subset of go.bug.st/serial.Port used by this package.
type SerialPort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadTimeout(d time.Duration) error
	ResetInputBuffer() error
}

// bugstPort wraps the concrete serial.Port to satisfy SerialPort.
type bugstPort struct {
	gobug.Port
}

// lineTransport frames a SerialPort into separator-delimited lines.
type lineTransport struct {
	port    SerialPort
	timeout time.Duration
	buf     []byte
	pending []byte
	closed  bool
	now     func() time.Time
}

func newLineTransport(sp SerialPort, timeout time.Duration) *lineTransport {
	return &lineTransport{
		port:    sp,
		timeout: timeout,
		buf:     make([]byte, 64),
		now:     time.Now,
	}
}

func (t *lineTransport) WriteLine(line string) error {
	if t.closed {
		return ErrTransportClosed
	}

	data := []byte(line + Separator)
	written := 0
	for written < len(data) {
		n, err := t.port.Write(data[written:])
		if err != nil {
			return fmt.Errorf("writing %q: %w", line, err)
		}
		if n == 0 {
			return fmt.Errorf("writing %q: partial write (%d of %d bytes)", line, written, len(data))
		}
		written += n
	}
	return nil
}

func (t *lineTransport) ReadLine() (string, error) {
	if t.closed {
		return "", ErrTransportClosed
	}

	deadline := t.now().Add(t.timeout)
	sep := Separator[0]
	for {
		if idx := bytes.IndexByte(t.pending, sep); idx >= 0 {
			line := string(t.pending[:idx])
			t.pending = t.pending[idx+1:]
			return line, nil
		}
		if len(t.pending) > maxLineSize {
			t.pending = t.pending[:0]
			return "", ErrLineTooLong
		}

		// The deadline bounds the whole line, not each Read. A partial line
		// left behind would be glued onto the next reply.
		remaining := deadline.Sub(t.now())
		if remaining <= 0 {
			t.pending = t.pending[:0]
			return "", ErrReadTimeout
		}
		if err := t.port.SetReadTimeout(remaining); err != nil {
			return "", fmt.Errorf("setting read timeout: %w", err)
		}

		// go.bug.st/serial reports an expired read timeout as (0, nil).
		n, err := t.port.Read(t.buf)
		if err != nil {
			return "", fmt.Errorf("reading line: %w", err)
		}
		t.pending = append(t.pending, t.buf[:n]...)
	}
}

func (t *lineTransport) ResetInput() error {
	if t.closed {
		return ErrTransportClosed
	}
	t.pending = t.pending[:0]
	return t.port.ResetInputBuffer()
}

func (t *lineTransport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.pending = nil
	return t.port.Close()
}

// isPortBusy reports whether err says the port is held by someone else.
func isPortBusy(err error) bool {
	var pe *gobug.PortError
	if errors.As(err, &pe) {
		return pe.Code() == gobug.PortBusy
	}
	var pv gobug.PortError
	if errors.As(err, &pv) {
		return pv.Code() == gobug.PortBusy
	}
	return false
}
