package flatpanel

import "errors"

var (
	ErrNotConnected    = errors.New("flatpanel: not connected")
	ErrReadTimeout     = errors.New("flatpanel: read timed out")
	ErrLineTooLong     = errors.New("flatpanel: response line too long")
	ErrTransportClosed = errors.New("flatpanel: transport closed")
	ErrInvalidPortName = errors.New("flatpanel: invalid port name")
	ErrPortBusy        = errors.New("flatpanel: port in use")
	ErrInvalidIdentity = errors.New("flatpanel: invalid device identity")
)

func isTimeout(err error) bool {
	return errors.Is(err, ErrReadTimeout)
}
