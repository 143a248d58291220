package extchannel

import (
	"bytes"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/HimbeerserverDE/extchannel/ext"
	"github.com/HimbeerserverDE/extchannel/simworld"
)

// slotState belongs to a client slot, not to a Conn.
// It is cleared when the client leaves and reused by the next one.
type slotState struct {
	flood  FloodState
	sync   SyncState
	synced bool
	kicked bool
}

type inboxMsg struct {
	c     *Conn
	data  []byte
	leave bool
}

// A Server runs the authoritative simulation
// and the sessions of every client
type Server struct {
	cfg   *Config
	l     *Listener
	store *Storage
	world *simworld.World
	ctx   *ext.Context

	flood  AntiFlood
	policy SyncPolicy
	slots  []slotState

	adminS, adminV []byte

	inbox     chan inboxMsg
	done      chan struct{}
	closeOnce sync.Once

	seq      uint32
	ticks    int
	paused   bool
	pausedBy int

	desync *DesyncLog
	status statusBoard

	onJoin  []func(*Conn)
	onLeave []func(*Conn)
}

// NewServer prepares a Server for the clients accepted by l.
// store may be nil, admin login and bans are disabled then.
func NewServer(cfg *Config, l *Listener, store *Storage, w *simworld.World) (*Server, error) {
	if cfg.TickRate < 1 {
		return nil, errors.New("tick_rate must be positive")
	}

	s := &Server{
		cfg:      cfg,
		l:        l,
		store:    store,
		world:    w,
		ctx:      ext.NewContext(w),
		flood:    cfg.Flood(),
		policy:   cfg.SyncPolicy(),
		slots:    make([]slotState, l.Slots()),
		inbox:    make(chan inboxMsg, 1024),
		done:     make(chan struct{}),
		pausedBy: -1,
	}
	s.ctx.Debug = cfg.Debug

	for i := range s.slots {
		s.slots[i].sync = NewSyncState(cfg.SyncCheck.BufferSize)
	}

	if store != nil {
		salt, v, err := AdminVerifier(store, cfg.AdminPassword)
		switch {
		case errors.Is(err, ErrNoAdminVerifier):
			log.Print("No admin password set, admin login is disabled")
		case err != nil:
			return nil, err
		default:
			s.adminS, s.adminV = salt, v
		}
	}

	if cfg.DesyncLogDir != "" {
		s.desync = NewDesyncLog(cfg.DesyncLogDir)
	}

	s.updateStatus()
	return s, nil
}

// Serve accepts clients until the Listener is closed
func (s *Server) Serve() {
	for {
		clt, err := s.l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}

			select {
			case <-s.done:
				return
			default:
			}

			log.Print(err)
			continue
		}

		log.Print(clt.Addr(), " connected")
		go s.recv(clt)
	}
}

// recv only hands messages to the tick loop
func (s *Server) recv(c *Conn) {
	for {
		pkt, err := c.Recv()
		if err != nil {
			closed := errors.Is(err, net.ErrClosed)
			select {
			case <-c.Disco():
				closed = true
			default:
			}

			if !closed {
				log.Print(err)
				continue
			}

			msg := c.Addr().String() + " disconnected"
			if c.TimedOut() {
				msg += " (timed out)"
			}
			log.Print(msg)

			s.enqueue(inboxMsg{c: c, leave: true})
			return
		}

		s.enqueue(inboxMsg{c: c, data: pkt.Data})
	}
}

func (s *Server) enqueue(m inboxMsg) {
	select {
	case s.inbox <- m:
	case <-s.done:
	}
}

// Run executes ticks until the Server is closed
func (s *Server) Run() {
	dt := 1 / float64(s.cfg.TickRate)

	t := time.NewTicker(time.Second / time.Duration(s.cfg.TickRate))
	defer t.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-t.C:
			s.Step(dt)
		}
	}
}

// Step executes one tick
func (s *Server) Step(dt float64) {
drain:
	for i := 0; i < s.cfg.MaxMsgsPerTick; i++ {
		select {
		case m := <-s.inbox:
			s.handle(m)
		default:
			break drain
		}
	}

	if !s.paused {
		s.world.Step(dt)
		s.seq++

		check := SyncCheck{
			Tick:     s.world.Time(),
			Sequence: s.seq,
			CRC:      s.world.Checksum(),
			LevelID:  s.world.LevelID(),
		}

		request := s.cfg.SyncCheck.RequestInterval > 0 &&
			s.seq%uint32(s.cfg.SyncCheck.RequestInterval) == 0

		for _, c := range s.l.Conns() {
			st := &s.slots[c.Slot()]
			if !st.synced {
				continue
			}

			st.sync.Buffer.Add(check)
			if request {
				if err := c.SendMsg(syncRequestMsg(check.Tick, check.Sequence)); err != nil {
					log.Print(err)
				}
			}
		}
	}

	s.ticks++
	if s.ticks%s.cfg.TickRate == 0 {
		s.ResetFlood()
		s.updateStatus()
	}
}

// ResetFlood clears the flood counters of every slot
func (s *Server) ResetFlood() {
	for i := range s.slots {
		s.slots[i].flood.Reset()
	}
}

func (s *Server) handle(m inboxMsg) {
	if m.leave {
		s.leave(m.c)
		return
	}

	st := &s.slots[m.c.Slot()]
	if st.kicked {
		return
	}

	if s.flood.OnPacket(&st.flood) {
		log.Print(m.c.Name() + " at " + m.c.Addr().String() + " kicked for flooding")
		s.kick(m.c, AccessDeniedFlood)
		return
	}

	if len(m.data) == 0 {
		return
	}

	r := bytes.NewReader(m.data[1:])
	switch m.data[0] {
	case ToServerHello:
		s.handleHello(m.c, r)
	case ToServerChat:
		if m.c.Joined() {
			s.handleChat(m.c, ReadBytes16(r))
		}
	case ToServerSyncCheck:
		if m.c.Joined() {
			s.handleSyncCheck(m.c, readSyncCheck(r))
		}
	case ToServerAdminSrpA:
		s.handleSrpA(m.c, ReadBytes16(r))
	case ToServerAdminSrpM:
		s.handleSrpM(m.c, ReadBytes16(r))
	}
}

func (s *Server) kick(c *Conn, reason uint8) {
	s.slots[c.Slot()].kicked = true
	if err := c.CloseWith(reason, ""); err != nil {
		log.Print(err)
	}
}

func (s *Server) leave(c *Conn) {
	st := &s.slots[c.Slot()]
	st.flood.Reset()
	st.sync.Reset()
	st.synced = false
	st.kicked = false

	joined := c.Joined()
	s.l.release(c)

	if joined {
		log.Print(c.Name() + " left")
		s.broadcast(leaveMsg(c.Slot()))
		s.processLeave(c)
	}

	if s.paused && s.pausedBy == c.Slot() {
		s.resume()
	}
}

func (s *Server) handleHello(c *Conn, r *bytes.Reader) {
	if c.Joined() {
		return
	}

	name, guid, err := readHello(r)
	if err != nil || name == "" {
		log.Print(c.Addr().String() + " sent a malformed hello")
		s.kick(c, AccessDeniedUnexpectedData)
		return
	}

	c.setIdentity(name, guid)

	// A client joining a level that already spawned something
	// has no way to rebuild its state, entity ids included,
	// so it is only checked from the next level change on
	st := &s.slots[c.Slot()]
	st.synced = s.world.Fresh()

	wc := Welcome{
		Slot:     c.Slot(),
		TickRate: s.cfg.TickRate,
		Level:    s.world.Level(),
		Time:     s.world.Time(),
	}
	if err := c.SendMsg(welcomeMsg(wc)); err != nil {
		log.Print(err)
		return
	}

	props, err := ext.Marshal(ext.NewSessionPropsPatch(s.ctx.Props, 0, ext.SessionPropsSize))
	if err == nil {
		c.SendMsg(chatMsg(ServerSlot, s.world.Time(), props))
	}

	own := c.Identity()
	c.SendMsg(identityMsg(own))
	for _, o := range s.l.Conns() {
		if o == c || !o.Joined() {
			continue
		}

		c.SendMsg(identityMsg(IdentityFor(o.Identity(), c.Slot(), s.cfg.MaskGUIDs)))
		o.SendMsg(identityMsg(IdentityFor(own, o.Slot(), s.cfg.MaskGUIDs)))
	}

	if motd, ok := ConfKey("motd").(string); ok && motd != "" {
		SendChatMsg(c, motd)
	}
	if s.paused {
		c.SendMsg(pauseMsg(true, "The game is paused."))
	}

	log.Printf("%s joined in slot %d", name, c.Slot())
	s.processJoin(c)
}

func (s *Server) handleSyncCheck(c *Conn, remote SyncCheck) {
	st := &s.slots[c.Slot()]
	if !st.synced {
		return
	}

	verdict, local, _ := st.sync.Check(remote, s.policy)
	if verdict == SyncOK || verdict == SyncSkipped {
		return
	}

	log.Printf("%s is out of sync at tick %v (%s, %d in a row)", c.Name(), remote.Tick, verdict, st.sync.BadSyncs)
	s.reportDesync(c, local, remote, verdict, st.sync.BadSyncs)

	switch verdict {
	case SyncMismatch:
		SendChatMsg(c, "Your game is out of sync with the server.")
	case SyncPause:
		s.pause(c)
	case SyncKick:
		s.kick(c, AccessDeniedDesync)
	}
}

func (s *Server) pause(c *Conn) {
	if s.paused {
		return
	}

	s.paused = true
	s.pausedBy = c.Slot()
	s.broadcast(pauseMsg(true, "Paused because "+c.Name()+" is out of sync."))
	s.sendAdmins("The game stays paused until " + c.Name() + " leaves.")
}

func (s *Server) resume() {
	s.paused = false
	s.pausedBy = -1
	s.broadcast(pauseMsg(false, ""))
	s.ChatSendAll("The game continues.")
}

// levelChanged starts sync checking every joined client from scratch
func (s *Server) levelChanged() {
	for _, c := range s.l.Conns() {
		st := &s.slots[c.Slot()]
		st.sync.Reset()
		st.synced = c.Joined()
	}
}

func (s *Server) handleSrpA(c *Conn, A []byte) {
	if s.adminV == nil || A == nil {
		c.SendMsg([]byte{ToClientAdminDeny})
		return
	}

	B, err := c.login.begin(s.adminS, s.adminV, A)
	if err != nil {
		log.Print(err)
		c.SendMsg([]byte{ToClientAdminDeny})
		return
	}

	c.SendMsg(srpMsg(ToClientAdminSrpSB, s.adminS, B))
}

func (s *Server) handleSrpM(c *Conn, M []byte) {
	if !c.login.finish(M) {
		log.Print(c.Name() + " at " + c.Addr().String() + " supplied wrong admin password")
		c.SendMsg([]byte{ToClientAdminDeny})
		return
	}

	c.setAdmin(true)
	log.Print(c.Name() + " logged in as admin")
	c.SendMsg([]byte{ToClientAdminAccept})
}

// Close stops the Server without notifying clients
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.l.Close()

		if s.desync != nil {
			if err2 := s.desync.Close(); err == nil {
				err = err2
			}
		}

		s.status.close()
	})

	return err
}
