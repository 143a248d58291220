package extchannel

import (
	"errors"
	"log"
	"net"
	"sync"

	"github.com/anon55555/mt/rudp"
)

var ErrPlayerLimitReached = errors.New("player limit reached")
var ErrBanned = errors.New("banned address")

// A Listener accepts clients into a fixed number of slots
type Listener struct {
	*rudp.Listener
	pc    net.PacketConn
	store *Storage

	mu    sync.RWMutex
	slots []*Conn
}

// MaxSlots is the most client slots a Listener offers.
// Slots travel as one byte and ServerSlot is reserved.
const MaxSlots = ServerSlot

// Listen accepts up to limit clients on pc.
// Addresses banned in store are refused, a nil store bans nobody.
func Listen(pc net.PacketConn, limit int, store *Storage) *Listener {
	if limit < 1 {
		limit = 1
	}
	if limit > MaxSlots {
		limit = MaxSlots
	}

	return &Listener{
		Listener: rudp.Listen(pc),
		pc:       pc,
		store:    store,
		slots:    make([]*Conn, limit),
	}
}

// Slots returns the number of client slots
func (l *Listener) Slots() int { return len(l.slots) }

// Accept waits for and returns a connecting Conn
// You should keep calling this until it returns net.ErrClosed
// so it doesn't leak a goroutine
func (l *Listener) Accept() (*Conn, error) {
	rp, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	clt := &Conn{Peer: rp, slot: -1}

	if l.store != nil {
		banned, name, err := l.store.IsBanned(addrIP(rp.Addr()))
		if err != nil {
			log.Print(err)
		}

		if banned {
			log.Print("Banned user " + name + " at " + rp.Addr().String() + " tried to connect")
			clt.CloseWith(AccessDeniedBanned, "")
			return nil, ErrBanned
		}
	}

	l.mu.Lock()
	for i, c := range l.slots {
		if c == nil {
			clt.slot = i
			l.slots[i] = clt
			break
		}
	}
	l.mu.Unlock()

	if clt.slot < 0 {
		clt.CloseWith(AccessDeniedTooManyUsers, "")
		return nil, ErrPlayerLimitReached
	}

	return clt, nil
}

// release frees the slot of c
func (l *Listener) release(c *Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if c.slot >= 0 && c.slot < len(l.slots) && l.slots[c.slot] == c {
		l.slots[c.slot] = nil
	}
}

// Conns returns every connected client ordered by slot
func (l *Listener) Conns() []*Conn {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var r []*Conn
	for _, c := range l.slots {
		if c != nil {
			r = append(r, c)
		}
	}
	return r
}

// Close stops accepting clients
func (l *Listener) Close() error {
	return l.pc.Close()
}
