package extchannel

// RegisterOnJoin registers a callback function that is called
// on the tick loop when a client finished its hello
func (s *Server) RegisterOnJoin(function func(*Conn)) {
	s.onJoin = append(s.onJoin, function)
}

// RegisterOnLeave registers a callback function that is called
// on the tick loop when a client that had joined disconnects
func (s *Server) RegisterOnLeave(function func(*Conn)) {
	s.onLeave = append(s.onLeave, function)
}

func (s *Server) processJoin(c *Conn) {
	for i := range s.onJoin {
		s.onJoin[i](c)
	}
}

func (s *Server) processLeave(c *Conn) {
	for i := range s.onLeave {
		s.onLeave[i](c)
	}
}
