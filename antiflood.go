package extchannel

// FloodState counts what one client sent during the current second
type FloodState struct {
	Packets  int
	Messages int
}

// Reset is the only way the counters go down
func (s *FloodState) Reset() {
	s.Packets = 0
	s.Messages = 0
}

// AntiFlood limits how much a client may send per second
type AntiFlood struct {
	Enabled          bool
	PacketThreshold  int
	MessageThreshold int
}

// OnPacket counts a packet and reports whether the client must be kicked
func (g AntiFlood) OnPacket(s *FloodState) bool {
	s.Packets++
	return g.Enabled && s.Packets > g.PacketThreshold
}

// OnMessage counts a chat message and reports whether it may go through
func (g AntiFlood) OnMessage(s *FloodState) bool {
	s.Messages++
	return !g.Enabled || s.Messages <= g.MessageThreshold
}
