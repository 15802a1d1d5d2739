package flatpanel

import (
	"fmt"
	"strings"
	"time"

	gobug "go.bug.st/serial"
)

type BaudRate int

func (b BaudRate) Int() int {
	return int(b)
}

const (
	Baud9600   BaudRate = 9600
	Baud19200  BaudRate = 19200
	Baud38400  BaudRate = 38400
	Baud57600  BaudRate = 57600
	Baud115200 BaudRate = 115200
)

type DataBits int

func (d DataBits) Int() int {
	return int(d)
}

const (
	DataBits7 DataBits = 7
	DataBits8 DataBits = 8
)

type Parity gobug.Parity

func (pa Parity) Get() gobug.Parity {
	return gobug.Parity(pa)
}

func (pa Parity) String() string {
	switch pa {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	case ParityMark:
		return "mark"
	case ParitySpace:
		return "space"
	default:
		return fmt.Sprintf("parity(%d)", int(pa))
	}
}

const (
	// ParityNone represents no parity bit
	ParityNone = Parity(gobug.NoParity)
	// ParityOdd represents odd parity bit
	ParityOdd = Parity(gobug.OddParity)
	// ParityEven represents even parity bit
	ParityEven = Parity(gobug.EvenParity)
	// ParityMark represents mark parity bit (always 1)
	ParityMark = Parity(gobug.MarkParity)
	// ParitySpace represents space parity bit (always 0)
	ParitySpace = Parity(gobug.SpaceParity)
)

// ParseParity maps a config value such as "none" or "E" to a Parity.
func ParseParity(s string) (Parity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "n", "none":
		return ParityNone, nil
	case "o", "odd":
		return ParityOdd, nil
	case "e", "even":
		return ParityEven, nil
	case "m", "mark":
		return ParityMark, nil
	case "s", "space":
		return ParitySpace, nil
	}
	return ParityNone, fmt.Errorf("unsupported parity %q", s)
}

type StopBits gobug.StopBits

func (sb StopBits) Get() gobug.StopBits {
	return gobug.StopBits(sb)
}

const (
	// StopBits1 represents 1 stop bit
	StopBits1 = StopBits(gobug.OneStopBit)
	// StopBits1Half represents 1.5 stop bits
	StopBits1Half = StopBits(gobug.OnePointFiveStopBits)
	// StopBits2 represents 2 stop bits
	StopBits2 = StopBits(gobug.TwoStopBits)
)

// ParseStopBits maps "1", "1.5" or "2" to a StopBits value.
func ParseStopBits(s string) (StopBits, error) {
	switch strings.TrimSpace(s) {
	case "", "1":
		return StopBits1, nil
	case "1.5":
		return StopBits1Half, nil
	case "2":
		return StopBits2, nil
	}
	return StopBits1, fmt.Errorf("unsupported stop bits %q", s)
}

const (
	// SessionReadTimeout bounds every read on the long-lived session transport.
	SessionReadTimeout = 10 * time.Second
	// ProbeReadTimeout bounds reads during the handshake. It is much shorter
	// than SessionReadTimeout because a scan may visit many wrong ports.
	ProbeReadTimeout = 1 * time.Second
)

// Settings are the line parameters used to open a transport.
type Settings struct {
	BaudRate    BaudRate
	DataBits    DataBits
	Parity      Parity
	StopBits    StopBits
	ReadTimeout time.Duration
}

// DefaultSettings returns the panel's 57600 8-N-1 parameters with the
// session read timeout.
func DefaultSettings() Settings {
	return Settings{
		BaudRate:    Baud57600,
		DataBits:    DataBits8,
		Parity:      ParityNone,
		StopBits:    StopBits1,
		ReadTimeout: SessionReadTimeout,
	}
}

// WithReadTimeout returns a copy of s using d as read timeout.
func (s Settings) WithReadTimeout(d time.Duration) Settings {
	s.ReadTimeout = d
	return s
}

func (s Settings) mode() *gobug.Mode {
	return &gobug.Mode{
		BaudRate: s.BaudRate.Int(),
		DataBits: s.DataBits.Int(),
		Parity:   s.Parity.Get(),
		StopBits: s.StopBits.Get(),
	}
}
