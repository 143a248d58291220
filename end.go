package extchannel

import (
	"log"
	"time"
)

// End disconnects all clients and closes the Server
func (s *Server) End(crash bool) {
	log.Print("Ending")

	reason := AccessDeniedShutdown
	if crash {
		reason = AccessDeniedCrash
	}

	s.ChatSendAll(AccessDeniedMsg(reason, ""))
	for _, c := range s.l.Conns() {
		c.CloseWith(reason, "")
	}

	time.Sleep(time.Second)

	if err := s.Close(); err != nil {
		log.Print(err)
	}
}
