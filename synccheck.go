package extchannel

import (
	"log"
)

// A SyncCheck is a digest of the simulation state at one tick
type SyncCheck struct {
	Tick     float64
	Sequence uint32
	CRC      uint32
	LevelID  uint32
}

// SyncResult is the outcome of a SyncBuffer lookup
type SyncResult uint8

const (
	SyncMatch SyncResult = iota
	SyncTooNew
	SyncTooOld
	SyncIndeterminate
)

func (r SyncResult) String() string {
	switch r {
	case SyncMatch:
		return "match"
	case SyncTooNew:
		return "too new"
	case SyncTooOld:
		return "too old"
	}
	return "indeterminate"
}

// A SyncBuffer remembers the server side checks of the last ticks
// so that late client checks can be compared against them
type SyncBuffer struct {
	checks []SyncCheck
	size   int
}

// NewSyncBuffer returns an empty SyncBuffer holding up to size checks
func NewSyncBuffer(size int) *SyncBuffer {
	if size < 1 {
		size = 1
	}

	return &SyncBuffer{
		checks: make([]SyncCheck, 0, size),
		size:   size,
	}
}

// Add stores c. A full buffer replaces the check with the smallest tick.
func (b *SyncBuffer) Add(c SyncCheck) {
	if len(b.checks) < b.size {
		b.checks = append(b.checks, c)
		return
	}

	oldest := 0
	for i := range b.checks {
		if b.checks[i].Tick < b.checks[oldest].Tick {
			oldest = i
		}
	}

	b.checks[oldest] = c
}

// Find looks for the check taken at tick
func (b *SyncBuffer) Find(tick float64) (SyncCheck, SyncResult) {
	if len(b.checks) == 0 {
		return SyncCheck{}, SyncIndeterminate
	}

	var earlier, later bool
	for _, c := range b.checks {
		switch {
		case c.Tick == tick:
			return c, SyncMatch
		case c.Tick < tick:
			earlier = true
		default:
			later = true
		}
	}

	switch {
	case earlier && !later:
		return SyncCheck{}, SyncTooNew
	case later && !earlier:
		return SyncCheck{}, SyncTooOld
	}

	return SyncCheck{}, SyncIndeterminate
}

// Len returns the number of stored checks
func (b *SyncBuffer) Len() int { return len(b.checks) }

// Clear empties the buffer and keeps its storage
func (b *SyncBuffer) Clear() {
	b.checks = b.checks[:0]
}

// SyncVerdict is what the session does about a client check
type SyncVerdict uint8

const (
	SyncOK SyncVerdict = iota
	SyncSkipped
	SyncMismatch
	SyncPause
	SyncKick
)

func (v SyncVerdict) String() string {
	switch v {
	case SyncOK:
		return "ok"
	case SyncSkipped:
		return "skipped"
	case SyncMismatch:
		return "mismatch"
	case SyncPause:
		return "pause"
	}
	return "kick"
}

// A SyncPolicy decides how mismatches escalate.
// PauseOnMismatch wins over KickAfter. A KickAfter of zero never kicks.
type SyncPolicy struct {
	PauseOnMismatch bool
	KickAfter       int
}

// SyncState is the per client sync bookkeeping
type SyncState struct {
	Buffer   *SyncBuffer
	BadSyncs int
}

// NewSyncState returns a SyncState with a buffer of the given size
func NewSyncState(size int) SyncState {
	return SyncState{Buffer: NewSyncBuffer(size)}
}

// Check compares a check received from the client
// with the one the server took at the same tick
func (s *SyncState) Check(remote SyncCheck, pol SyncPolicy) (SyncVerdict, SyncCheck, SyncResult) {
	local, res := s.Buffer.Find(remote.Tick)
	switch res {
	case SyncTooNew, SyncTooOld:
		return SyncSkipped, local, res
	case SyncIndeterminate:
		log.Printf("sync check for tick %v is indeterminate with %d buffered checks", remote.Tick, s.Buffer.Len())
		return SyncSkipped, local, res
	}

	if local.CRC == remote.CRC && local.LevelID == remote.LevelID {
		s.BadSyncs = 0
		return SyncOK, local, res
	}

	s.BadSyncs++
	switch {
	case pol.PauseOnMismatch:
		return SyncPause, local, res
	case pol.KickAfter > 0 && s.BadSyncs >= pol.KickAfter:
		return SyncKick, local, res
	}

	return SyncMismatch, local, res
}

// Reset forgets every check and the mismatch count
func (s *SyncState) Reset() {
	if s.Buffer != nil {
		s.Buffer.Clear()
	}
	s.BadSyncs = 0
}
