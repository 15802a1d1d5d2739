package flatpanel

import (
	"errors"
	"fmt"
	"strings"

	gobug "go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// allow tests to override external dependencies
var (
	openPort     = openBugst
	getPortsList = gobug.GetPortsList
	getDetailed  = enumerator.GetDetailedPortsList
)

func openBugst(name string, mode *gobug.Mode) (SerialPort, error) {
	p, err := gobug.Open(name, mode)
	if err != nil {
		return nil, err
	}
	return &bugstPort{Port: p}, nil
}

// SerialDialer opens real serial ports through go.bug.st/serial.
type SerialDialer struct{}

var _ Dialer = SerialDialer{}

// Open opens portName with s and applies the read timeout. A port held by
// another process yields an error wrapping ErrPortBusy.
func (SerialDialer) Open(portName string, s Settings) (Transport, error) {
	if err := checkPortName(portName); err != nil {
		return nil, err
	}

	sp, err := openPort(portName, s.mode())
	if err != nil {
		if isPortBusy(err) {
			return nil, fmt.Errorf("opening serial port %s: %w: %v", portName, ErrPortBusy, err)
		}
		return nil, fmt.Errorf("opening serial port %s: %w", portName, err)
	}

	if err = sp.SetReadTimeout(s.ReadTimeout); err != nil {
		if e := sp.Close(); e != nil {
			err = errors.Join(err, e)
		}
		return nil, fmt.Errorf("setting read timeout on %s: %w", portName, err)
	}

	return newLineTransport(sp, s.ReadTimeout), nil
}

// Ports returns the system-visible port names in enumeration order.
func (SerialDialer) Ports() ([]string, error) {
	return AvailablePorts()
}

func AvailablePorts() ([]string, error) {
	ports, err := getPortsList()
	if err != nil {
		return nil, err
	}
	return ports, nil
}

// PortListed reports whether the system enumerates portName. Ports that are
// not listed, such as pseudo terminals, can still be opened.
func PortListed(portName string) (bool, error) {
	if err := checkPortName(portName); err != nil {
		return false, err
	}
	ports, err := AvailablePorts()
	if err != nil {
		return false, err
	}
	for _, port := range ports {
		if port == portName {
			return true, nil
		}
	}
	return false, nil
}

// PortInfo describes one enumerated port.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// DetailedPorts lists ports with USB metadata where the platform exposes it.
func DetailedPorts() ([]PortInfo, error) {
	details, err := getDetailed()
	if err != nil {
		return nil, err
	}
	infos := make([]PortInfo, 0, len(details))
	for _, d := range details {
		infos = append(infos, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return infos, nil
}

// IsPortBusy reports whether an Open error means the port is already in use.
func IsPortBusy(err error) bool {
	return errors.Is(err, ErrPortBusy) || isPortBusy(err)
}

func checkPortName(portName string) error {
	if strings.TrimSpace(portName) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPortName)
	}
	// Security: Prevent path traversal attacks
	if strings.Contains(portName, "..") {
		return fmt.Errorf("%w: %q contains path traversal", ErrInvalidPortName, portName)
	}
	return nil
}
