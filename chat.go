package extchannel

import (
	"log"

	"github.com/HimbeerserverDE/extchannel/bitcodec"
	"github.com/HimbeerserverDE/extchannel/ext"
)

// SplitChat reports whether a chat message carries an extension packet.
// Anything else is plain text.
func SplitChat(msg []byte) (isExt bool, text string) {
	r := bitcodec.NewReader(msg)
	if ext.Probe(r) {
		return true, ""
	}

	r.Rewind()
	return false, string(r.Rest())
}

// SendChatMsg sends a plain text message from the server to c
func SendChatMsg(c *Conn, msg string) {
	if err := c.SendMsg(chatMsg(ServerSlot, 0, []byte(msg))); err != nil {
		log.Print(err)
	}
}

// broadcast sends data to every client that finished its hello
func (s *Server) broadcast(data []byte) {
	for _, c := range s.l.Conns() {
		if !c.Joined() {
			continue
		}

		if err := c.SendMsg(data); err != nil {
			log.Print(err)
		}
	}
}

// ChatSendAll sends a chat message to all connected clients
func (s *Server) ChatSendAll(msg string) {
	s.broadcast(chatMsg(ServerSlot, 0, []byte(msg)))
}

// sendAdmins sends a chat message to every logged in admin
func (s *Server) sendAdmins(msg string) {
	for _, c := range s.l.Conns() {
		if c.IsAdmin() {
			SendChatMsg(c, msg)
		}
	}
}

func (s *Server) handleChat(c *Conn, msg []byte) {
	if msg == nil {
		return
	}

	st := &s.slots[c.Slot()]
	if !s.flood.OnMessage(&st.flood) {
		if st.flood.Messages == s.flood.MessageThreshold+1 {
			SendChatMsg(c, "You are sending messages too fast, slow down.")
		}
		return
	}

	isExt, text := SplitChat(msg)
	if !isExt {
		log.Print("<" + c.Name() + "> " + text)
		s.broadcast(chatMsg(c.Slot(), 0, msg))
		return
	}

	if !c.IsAdmin() {
		log.Print(c.Name() + " at " + c.Addr().String() + " sent an extension packet without admin login")
		SendChatMsg(c, "Only admins may send extension packets.")
		return
	}

	tick := s.world.Time()
	p, err := s.ctx.Handle(msg)
	if p == nil {
		log.Print(c.Name(), ": ", err)
		return
	}
	if err != nil {
		log.Print(c.Name(), ": ", err)
	}

	if p.Type() == ext.TypeChangeLevel && err == nil {
		s.levelChanged()
	}

	// Everyone, the sender included, applies the packet at the same tick
	s.broadcast(chatMsg(c.Slot(), tick, msg))
}
