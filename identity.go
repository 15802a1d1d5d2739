package flatpanel

import (
	"fmt"

	"github.com/google/uuid"
)

// DeviceGUID is the identity string the panel firmware returns for PING.
const DeviceGUID = "6b8a48d2-1c3f-4e57-9a0e-3f52c7d1b9a4"

// Identity is the handshake token that marks a port as hosting the panel.
type Identity struct {
	guid string
}

// DefaultIdentity returns the identity for DeviceGUID.
func DefaultIdentity() Identity {
	return Identity{guid: DeviceGUID}
}

// NewIdentity validates guid as a UUID. The string is kept verbatim because
// the handshake compares the reply literally.
func NewIdentity(guid string) (Identity, error) {
	if _, err := uuid.Parse(guid); err != nil {
		return Identity{}, fmt.Errorf("%w: %q: %v", ErrInvalidIdentity, guid, err)
	}
	return Identity{guid: guid}, nil
}

func (i Identity) GUID() string {
	if i.guid == "" {
		return DeviceGUID
	}
	return i.guid
}

// Token is the exact reply expected to a PING.
func (i Identity) Token() string {
	return StatusOK.String() + ":" + i.GUID()
}

// Matches reports whether a trimmed reply equals the identity token.
func (i Identity) Matches(reply string) bool {
	return reply == i.Token()
}
