package ext

import (
	"hash/fnv"
	"strings"

	"github.com/HimbeerserverDE/extchannel/bitcodec"
)

// An EntityRef is the 31-bit wire identifier of a simulated object
type EntityRef uint32

// NoEntity and everything above it mean "no object"
const NoEntity EntityRef = bitcodec.MaxEntityRef

// Valid reports whether r can name an object at all
func (r EntityRef) Valid() bool { return r < NoEntity }

// RefOf returns the reference to send for e, NoEntity for nil
func RefOf(e Entity) EntityRef {
	if e == nil {
		return NoEntity
	}

	id := e.ID()
	if id > uint32(NoEntity) {
		return NoEntity
	}
	return EntityRef(id)
}

// Resolve looks up the live object r refers to.
// Invalid references never reach the World.
// A missing or deleted object is an ordinary outcome since
// objects may be destroyed between send and receive.
func Resolve(w World, r EntityRef) (Entity, bool) {
	if !r.Valid() || w == nil {
		return nil, false
	}

	e, ok := w.Lookup(uint32(r))
	if !ok || e == nil || e.Deleted() {
		return nil, false
	}

	return e, true
}

// A World is the simulation extension packets act upon
type World interface {
	// Lookup returns the object carrying id
	Lookup(id uint32) (Entity, bool)

	// Entities returns every object that has not been deleted
	Entities() []Entity

	// Spawn creates an object of the named class
	Spawn(class string, pl bitcodec.Placement) (Entity, error)

	// Clone creates a copy of e at the same placement
	Clone(e Entity) (Entity, error)

	// Damage applies d to whatever it covers
	Damage(d Damage)

	// ChangeLevel switches the session to another level
	ChangeLevel(name string) error
}

// An Entity is a live simulated object
type Entity interface {
	ID() uint32
	Class() string
	Deleted() bool
	Destroy()

	Placement() bitcodec.Placement
	SetPlacement(pl bitcodec.Placement)
	SetParent(parent Entity)
	SetVelocity(v bitcodec.Vector)
	SetSpin(v bitcodec.Vector)
	Stop(rotation bool)

	Health() float32
	SetHealth(hp float32)

	Flags(cat FlagCategory) uint32
	SetFlags(cat FlagCategory, flags uint32)

	HandleEvent(ev Event)

	// Property returns the property addressed by key
	// so that it can be modified in place
	Property(key PropertyKey) (*Property, bool)
}

// A FlagCategory selects one of the flag words of an Entity
type FlagCategory uint8

const (
	FlagsEntity FlagCategory = iota
	FlagsPhysics
	FlagsCollision
	FlagsSpawn
)

// An Event is delivered to an Entity by an EntityEvent packet
type Event struct {
	Code   uint32
	Fields []uint32

	// Entities holds the objects that fields refer to,
	// keyed by field index
	Entities map[int]Entity
}

// PropertyKind is the type of value a Property holds
type PropertyKind uint8

const (
	PropertyNumber PropertyKind = iota
	PropertyString
)

func (k PropertyKind) String() string {
	switch k {
	case PropertyNumber:
		return "number"
	case PropertyString:
		return "string"
	}
	return "unknown"
}

// A PropertyKey addresses a property either by numeric id
// or by the hash of its name
type PropertyKey struct {
	ByName bool
	ID     uint32
}

// A Property is one editable field of an Entity
type Property struct {
	Name   string
	ID     uint32
	Kind   PropertyKind
	Number float64
	String string
}

// PropertyHash returns the name hash used to address a property by name
func PropertyHash(name string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(name)))
	return h.Sum32()
}
