package extchannel

import (
	"github.com/google/uuid"
)

// MaskGUID derives the GUID other clients get to see for a player.
// It only depends on where the player sits in the session.
func MaskGUID(clientSlot, playerSlot int) uuid.UUID {
	var id uuid.UUID
	id[0] = byte(clientSlot)
	id[1] = byte(playerSlot)
	return id
}

// An Identity is what clients learn about a player
type Identity struct {
	Slot       int
	PlayerSlot int
	Name       string
	GUID       uuid.UUID
}

// IdentityFor returns the Identity of owner as it is sent to viewer
func IdentityFor(owner Identity, viewer int, mask bool) Identity {
	if mask && viewer != owner.Slot {
		owner.GUID = MaskGUID(owner.Slot, owner.PlayerSlot)
	}
	return owner
}
