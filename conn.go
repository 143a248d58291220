package extchannel

import (
	"bytes"
	"sync"
	"time"

	"github.com/anon55555/mt/rudp"
	"github.com/google/uuid"
)

// A Conn is a client connected to the server.
// It occupies one client slot until it disconnects.
type Conn struct {
	*rudp.Peer

	slot int

	mu    sync.RWMutex
	name  string
	guid  uuid.UUID
	hello bool
	admin bool

	login adminLogin
}

// Slot returns the client slot of the Conn
func (c *Conn) Slot() int { return c.slot }

// Name returns the player name sent in the hello
func (c *Conn) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.name
}

// GUID returns the real GUID of the player
func (c *Conn) GUID() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.guid
}

// Joined reports whether the Conn sent its hello
func (c *Conn) Joined() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.hello
}

func (c *Conn) setIdentity(name string, guid uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.name = name
	c.guid = guid
	c.hello = true
}

// Identity returns the unmasked Identity of the player
func (c *Conn) Identity() Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Identity{Slot: c.slot, Name: c.name, GUID: c.guid}
}

// IsAdmin reports whether the Conn completed the admin login
func (c *Conn) IsAdmin() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.admin
}

func (c *Conn) setAdmin(admin bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.admin = admin
}

// SendMsg sends one message without waiting for it to arrive
func (c *Conn) SendMsg(data []byte) error {
	_, err := c.Send(rudp.Pkt{Data: data})
	return err
}

// CloseWith denies access and disconnects the Conn.
// It does not block, the disconnect happens once the reason
// has been acknowledged or a second has passed.
func (c *Conn) CloseWith(reason uint8, custom string) error {
	w := &bytes.Buffer{}
	WriteUint8(w, ToClientAccessDenied)
	WriteUint8(w, reason)
	WriteBytes16(w, []byte(custom))

	ack, err := c.Send(rudp.Pkt{Data: w.Bytes()})

	go func() {
		if err == nil {
			select {
			case <-ack:
			case <-time.After(time.Second):
			}
		}

		c.SendDisco(0, true)
		c.Close()
	}()

	return err
}
