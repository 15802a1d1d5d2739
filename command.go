package flatpanel

import "strconv"

// Separator terminates every protocol message in both directions.
const Separator = "\n"

// Command is one request token understood by the panel firmware.
type Command string

const (
	CmdPing          Command = "PING"
	CmdGetBrightness Command = "GETBRIGHTNESS"
	CmdOff           Command = "OFF"

	cmdOn = "ON"
)

// CmdOn builds the ON:<n> request. The value is forwarded verbatim; the
// protocol declares no valid range.
func CmdOn(value int) Command {
	return Command(cmdOn + ":" + strconv.Itoa(value))
}

// BrightnessCommand selects OFF for zero and ON:<n> for anything else.
func BrightnessCommand(value int) Command {
	if value == 0 {
		return CmdOff
	}
	return CmdOn(value)
}

func (c Command) String() string {
	return string(c)
}

func (c Command) frame() string {
	return string(c) + Separator
}
