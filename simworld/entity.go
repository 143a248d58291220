package simworld

import (
	"github.com/HimbeerserverDE/extchannel/bitcodec"
	"github.com/HimbeerserverDE/extchannel/ext"
)

// An Entity is one object of a World
type Entity struct {
	world   *World
	id      uint32
	class   string
	deleted bool

	pl     bitcodec.Placement
	parent *Entity
	vel    bitcodec.Vector
	spin   bitcodec.Vector // degrees per second

	health float32
	flags  [4]uint32
	props  []ext.Property
	events []ext.Event
}

var _ ext.Entity = (*Entity)(nil)

func (e *Entity) ID() uint32      { return e.id }
func (e *Entity) Class() string   { return e.class }
func (e *Entity) Deleted() bool   { return e.deleted }
func (e *Entity) Health() float32 { return e.health }

// Destroy marks the Entity as deleted,
// it keeps its id so that stale references stay detectable
func (e *Entity) Destroy() { e.deleted = true }

func (e *Entity) Placement() bitcodec.Placement      { return e.pl }
func (e *Entity) SetPlacement(pl bitcodec.Placement) { e.pl = pl }
func (e *Entity) SetHealth(hp float32)               { e.health = hp }
func (e *Entity) SetVelocity(v bitcodec.Vector)      { e.vel = v }
func (e *Entity) SetSpin(v bitcodec.Vector)          { e.spin = v }

// Velocity returns the current velocity
func (e *Entity) Velocity() bitcodec.Vector { return e.vel }

// Spin returns the current angular velocity
func (e *Entity) Spin() bitcodec.Vector { return e.spin }

// Parent returns the Entity this one is attached to
func (e *Entity) Parent() *Entity { return e.parent }

func (e *Entity) SetParent(parent ext.Entity) {
	p, _ := parent.(*Entity)
	e.parent = p
}

func (e *Entity) Stop(rotation bool) {
	e.vel = bitcodec.Vector{}
	if rotation {
		e.spin = bitcodec.Vector{}
	}
}

func (e *Entity) Flags(cat ext.FlagCategory) uint32 {
	if int(cat) >= len(e.flags) {
		return 0
	}
	return e.flags[cat]
}

func (e *Entity) SetFlags(cat ext.FlagCategory, flags uint32) {
	if int(cat) < len(e.flags) {
		e.flags[cat] = flags
	}
}

func (e *Entity) HandleEvent(ev ext.Event) {
	e.events = append(e.events, ev)
}

// Events returns every event delivered so far
func (e *Entity) Events() []ext.Event { return e.events }

func (e *Entity) Property(key ext.PropertyKey) (*ext.Property, bool) {
	for i := range e.props {
		p := &e.props[i]
		if key.ByName && ext.PropertyHash(p.Name) == key.ID {
			return p, true
		}
		if !key.ByName && p.ID == key.ID {
			return p, true
		}
	}

	return nil, false
}
