package flatpanel

import (
	"strconv"
	"strings"
)

// StatusCode is the status prefix of a device reply.
type StatusCode int

const (
	StatusNOK StatusCode = iota
	StatusOK
)

func (s StatusCode) String() string {
	if s == StatusOK {
		return "OK"
	}
	return "NOK"
}

// Response is one parsed line of device output.
type Response struct {
	Status  StatusCode
	Payload string
}

// ParseResponse splits line on ':'. Only a line with exactly two parts whose
// first part is "OK" yields StatusOK; everything else is NOK with an empty
// payload.
func ParseResponse(line string) Response {
	parts := strings.Split(line, ":")
	if len(parts) != 2 || parts[0] != StatusOK.String() {
		return Response{Status: StatusNOK}
	}
	return Response{Status: StatusOK, Payload: parts[1]}
}

func (r Response) OK() bool {
	return r.Status == StatusOK
}

func (r Response) String() string {
	return r.Status.String() + ":" + r.Payload
}

// Int interprets the payload as a decimal integer. ok is false for NOK
// responses and for payloads that are not integers.
func (r Response) Int() (n int, ok bool) {
	if !r.OK() {
		return 0, false
	}
	n, err := strconv.Atoi(r.Payload)
	if err != nil {
		return 0, false
	}
	return n, true
}

var lineNoise = strings.NewReplacer("\r", "", "\n", "")

func stripLine(line string) string {
	return lineNoise.Replace(line)
}
