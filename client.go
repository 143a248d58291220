package extchannel

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/anon55555/mt/rudp"
	"github.com/google/uuid"

	"github.com/HimbeerserverDE/extchannel/ext"
	"github.com/HimbeerserverDE/extchannel/simworld"
)

// maxCatchUp limits how many ticks a client simulates at once
const maxCatchUp = 100000

// An AccessDeniedError is returned by Client.Run when the server
// refused or kicked the client
type AccessDeniedError struct {
	Reason uint8
	Msg    string
}

func (e *AccessDeniedError) Error() string {
	return "access denied: " + e.Msg
}

// A Client is the player side of a session.
// It keeps a local copy of the simulation in sync with the server.
type Client struct {
	peer *rudp.Peer

	name string
	guid uuid.UUID

	// OnChat is called with plain text chat messages,
	// set it before calling Run
	OnChat func(from int, text string)

	worldMu sync.Mutex
	world   *simworld.World
	ctx     *ext.Context
	dt      float64

	mu         sync.RWMutex
	slot       int
	admin      bool
	paused     bool
	identities map[int]Identity

	login     clientLogin
	welcome   chan struct{}
	loginDone chan bool

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the server at addr and sends the hello
func Dial(addr, name string, guid uuid.UUID) (*Client, error) {
	srvaddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}

	conn, err := net.DialUDP("udp", nil, srvaddr)
	if err != nil {
		return nil, err
	}

	world := simworld.New("")
	c := &Client{
		peer:       rudp.Connect(conn, conn.RemoteAddr()),
		name:       name,
		guid:       guid,
		world:      world,
		ctx:        ext.NewContext(world),
		slot:       -1,
		identities: make(map[int]Identity),
		welcome:    make(chan struct{}),
		loginDone:  make(chan bool, 1),
	}

	ack, err := c.peer.Send(rudp.Pkt{Data: helloMsg(name, guid)})
	if err != nil {
		c.peer.Close()
		return nil, err
	}

	select {
	case <-time.After(8 * time.Second):
		c.peer.SendDisco(0, true)
		c.peer.Close()

		return nil, fmt.Errorf("server at %s is unreachable", addr)
	case <-ack:
	}

	return c, nil
}

// Welcome is closed once the server accepted the hello
func (c *Client) Welcome() <-chan struct{} { return c.welcome }

// Slot returns the client slot assigned by the server, -1 before the welcome
func (c *Client) Slot() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.slot
}

// IsAdmin reports whether the admin login succeeded
func (c *Client) IsAdmin() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.admin
}

// Paused reports whether the server halted the simulation
func (c *Client) Paused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.paused
}

// Identity returns what the server told about the player in slot
func (c *Client) Identity(slot int) (Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.identities[slot]
	return id, ok
}

// WithWorld runs f with exclusive access to the local simulation
func (c *Client) WithWorld(f func(w *simworld.World, ctx *ext.Context)) {
	c.worldMu.Lock()
	defer c.worldMu.Unlock()

	f(c.world, c.ctx)
}

func (c *Client) send(data []byte) error {
	_, err := c.peer.Send(rudp.Pkt{Data: data})
	return err
}

// SendChat sends a plain text chat message
func (c *Client) SendChat(text string) error {
	return c.send(toServerChatMsg([]byte(text)))
}

// SendExt sends an extension packet. It is applied locally
// once the server echoes it back.
func (c *Client) SendExt(p ext.Packet) error {
	data, err := ext.Marshal(p)
	if err != nil {
		return err
	}

	return c.send(toServerChatMsg(data))
}

// Login starts the admin login, the result arrives on the returned channel
func (c *Client) Login(password string) (<-chan bool, error) {
	A, err := c.login.begin(password)
	if err != nil {
		return nil, err
	}

	if err := c.send(srpMsg(ToServerAdminSrpA, A)); err != nil {
		return nil, err
	}

	return c.loginDone, nil
}

// Close disconnects from the server
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.peer.SendDisco(0, true)
		c.closeErr = c.peer.Close()
	})

	return c.closeErr
}

// Run processes messages from the server until the connection ends
func (c *Client) Run() error {
	for {
		pkt, err := c.peer.Recv()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}

			select {
			case <-c.peer.Disco():
				return nil
			default:
			}

			log.Print(err)
			continue
		}

		if len(pkt.Data) == 0 {
			continue
		}

		if err := c.handle(pkt.Data[0], bytes.NewReader(pkt.Data[1:])); err != nil {
			return err
		}
	}
}

func (c *Client) handle(kind uint8, r *bytes.Reader) error {
	switch kind {
	case ToClientAccessDenied:
		reason := ReadUint8(r)
		return &AccessDeniedError{Reason: reason, Msg: AccessDeniedMsg(reason, string(ReadBytes16(r)))}
	case ToClientHello:
		wc := readWelcome(r)

		c.worldMu.Lock()
		if wc.Level != "" && wc.Level != c.world.Level() {
			c.world.ChangeLevel(wc.Level)
		}
		c.world.SetTime(wc.Time)
		if wc.TickRate > 0 {
			c.dt = 1 / float64(wc.TickRate)
		}
		c.worldMu.Unlock()

		c.mu.Lock()
		first := c.slot < 0
		c.slot = wc.Slot
		c.mu.Unlock()

		if first {
			close(c.welcome)
		}
	case ToClientChat:
		from := int(ReadUint8(r))
		tick := ReadFloat64(r)
		msg := ReadBytes16(r)

		isExt, text := SplitChat(msg)
		if !isExt {
			if c.OnChat != nil {
				c.OnChat(from, text)
			}
			return nil
		}

		c.worldMu.Lock()
		c.catchUp(tick)
		_, err := c.ctx.Handle(msg)
		c.worldMu.Unlock()

		if err != nil {
			log.Print(err)
		}
	case ToClientIdentity:
		id := readIdentity(r)

		c.mu.Lock()
		c.identities[id.Slot] = id
		c.mu.Unlock()
	case ToClientLeave:
		slot := int(ReadUint8(r))

		c.mu.Lock()
		delete(c.identities, slot)
		c.mu.Unlock()
	case ToClientAdminSrpSB:
		s := ReadBytes16(r)
		B := ReadBytes16(r)

		M, err := c.login.proof(s, B)
		if err != nil {
			log.Print(err)
			c.loginResult(false)
			return nil
		}

		if err := c.send(srpMsg(ToServerAdminSrpM, M)); err != nil {
			log.Print(err)
		}
	case ToClientAdminAccept:
		c.mu.Lock()
		c.admin = true
		c.mu.Unlock()

		c.loginResult(true)
	case ToClientAdminDeny:
		c.loginResult(false)
	case ToClientPause:
		paused := ReadUint8(r) == 1
		reason := string(ReadBytes16(r))

		c.mu.Lock()
		c.paused = paused
		c.mu.Unlock()

		if reason != "" {
			log.Print(reason)
		}
	case ToClientSyncRequest:
		tick := ReadFloat64(r)
		seq := ReadUint32(r)

		c.worldMu.Lock()
		c.catchUp(tick)
		check := SyncCheck{
			Tick:     c.world.Time(),
			Sequence: seq,
			CRC:      c.world.Checksum(),
			LevelID:  c.world.LevelID(),
		}
		c.worldMu.Unlock()

		if err := c.send(syncCheckMsg(check)); err != nil {
			log.Print(err)
		}
	}

	return nil
}

// catchUp steps the local simulation the same way the server did
// until it reaches tick
func (c *Client) catchUp(tick float64) {
	if c.dt <= 0 {
		return
	}

	for i := 0; i < maxCatchUp && c.world.Time() < tick; i++ {
		c.world.Step(c.dt)
	}
}

func (c *Client) loginResult(ok bool) {
	select {
	case c.loginDone <- ok:
	default:
	}
}
