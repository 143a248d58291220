/*
Package ext implements extension packets: bit-packed commands
that manipulate simulated objects outside of the regular
simulation stream.
*/
package ext

import (
	"errors"
	"fmt"

	"github.com/HimbeerserverDE/extchannel/bitcodec"
)

var (
	ErrBadMagic         = errors.New("not an extension packet")
	ErrUnknownType      = errors.New("unknown extension packet type")
	ErrTruncated        = errors.New("truncated extension packet")
	ErrNotSent          = errors.New("extension packet refused to serialize")
	ErrInvalidReference = errors.New("invalid entity reference")
	ErrUnknownClass     = errors.New("unknown entity class")
	ErrNoProperty       = errors.New("no such property")
	ErrPropertyType     = errors.New("property type mismatch")
	ErrOffset           = errors.New("session properties offset out of range")
	ErrNoWorld          = errors.New("no world to apply extension packet to")
)

// Magic must be at the start of every extension packet
const Magic uint32 = 0x45585450

// A Type identifies an extension packet on the wire.
// Values are a protocol contract, only append.
type Type uint32

const (
	TypeEntityCreate Type = iota
	TypeEntityDelete
	TypeEntityCopy
	TypeEntityEvent
	TypeEntityTeleport
	TypeEntitySetPosition
	TypeEntitySetRotation
	TypeEntityParent
	TypeEntityProperty
	TypeEntityHealth
	TypeEntityFlags
	TypeEntityMove
	TypeEntityStop
	TypeDamagePoint
	TypeDamageRange
	TypeDamageBox
	TypeChangeLevel
	TypeSessionProps

	typeCount
)

var typeNames = [typeCount]string{
	TypeEntityCreate:      "EntityCreate",
	TypeEntityDelete:      "EntityDelete",
	TypeEntityCopy:        "EntityCopy",
	TypeEntityEvent:       "EntityEvent",
	TypeEntityTeleport:    "EntityTeleport",
	TypeEntitySetPosition: "EntitySetPosition",
	TypeEntitySetRotation: "EntitySetRotation",
	TypeEntityParent:      "EntityParent",
	TypeEntityProperty:    "EntityProperty",
	TypeEntityHealth:      "EntityHealth",
	TypeEntityFlags:       "EntityFlags",
	TypeEntityMove:        "EntityMove",
	TypeEntityStop:        "EntityStop",
	TypeDamagePoint:       "DamagePoint",
	TypeDamageRange:       "DamageRange",
	TypeDamageBox:         "DamageBox",
	TypeChangeLevel:       "ChangeLevel",
	TypeSessionProps:      "SessionProps",
}

func (t Type) String() string {
	if t >= typeCount {
		return fmt.Sprintf("Type(%d)", uint32(t))
	}
	return typeNames[t]
}

var registry = [typeCount]func() Packet{
	TypeEntityCreate:      func() Packet { return &EntityCreate{} },
	TypeEntityDelete:      func() Packet { return &EntityDelete{} },
	TypeEntityCopy:        func() Packet { return &EntityCopy{} },
	TypeEntityEvent:       func() Packet { return &EntityEvent{} },
	TypeEntityTeleport:    func() Packet { return &EntityTeleport{} },
	TypeEntitySetPosition: func() Packet { return &EntitySetPosition{} },
	TypeEntitySetRotation: func() Packet { return &EntitySetRotation{} },
	TypeEntityParent:      func() Packet { return &EntityParent{} },
	TypeEntityProperty:    func() Packet { return &EntityProperty{} },
	TypeEntityHealth:      func() Packet { return &EntityHealth{} },
	TypeEntityFlags:       func() Packet { return &EntityFlags{} },
	TypeEntityMove:        func() Packet { return &EntityMove{} },
	TypeEntityStop:        func() Packet { return &EntityStop{} },
	TypeDamagePoint:       func() Packet { return &DamagePoint{} },
	TypeDamageRange:       func() Packet { return &DamageRange{} },
	TypeDamageBox:         func() Packet { return &DamageBox{} },
	TypeChangeLevel:       func() Packet { return &ChangeLevel{} },
	TypeSessionProps:      func() Packet { return &SessionPropsPatch{} },
}

// A Packet is one extension command
type Packet interface {
	Type() Type

	// Write serializes the packet body,
	// it returns false if the packet must not be sent
	Write(w *bitcodec.Writer) bool

	// Read deserializes the packet body.
	// Short input shows up as defaulted fields and a reader error.
	Read(r *bitcodec.Reader)

	// Process applies the packet on the receiving side
	Process(ctx *Context) error
}

// New returns an empty packet of type t
func New(t Type) (Packet, error) {
	if t >= typeCount || registry[t] == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, uint32(t))
	}

	return registry[t](), nil
}

// Types returns every known packet type
func Types() []Type {
	r := make([]Type, typeCount)
	for i := range r {
		r[i] = Type(i)
	}
	return r
}

// A Context is what packets are processed against.
// Every session owns its own.
type Context struct {
	World   World
	Classes *ClassDict
	Props   *SessionProps

	// EventRefs returns the indices of the fields of an event
	// that hold entity references
	EventRefs func(code uint32) []int

	// Debug makes unknown packet types panic instead of being dropped
	Debug bool
}

// NewContext returns a Context using the default class dictionary
// and a zeroed session properties blob
func NewContext(w World) *Context {
	return &Context{
		World:   w,
		Classes: DefaultClasses(),
		Props:   &SessionProps{},
	}
}

// Marshal serializes p including the magic and type tag
func Marshal(p Packet) ([]byte, error) {
	w := bitcodec.NewWriter()
	w.WriteBits(Magic, 32)
	w.WriteVarUint(uint32(p.Type()))

	if !p.Write(w) {
		return nil, fmt.Errorf("%w: %s", ErrNotSent, p.Type())
	}

	return w.Bytes(), nil
}

// Probe reports whether r is positioned at an extension packet
// and consumes the magic if it is
func Probe(r *bitcodec.Reader) bool {
	return r.ReadBits(32) == Magic && r.Err() == nil
}

// Decode reads the type tag and the packet body following the magic
func Decode(r *bitcodec.Reader) (Packet, error) {
	t := Type(r.ReadVarUint())
	if r.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, r.Err())
	}

	p, err := New(t)
	if err != nil {
		return nil, err
	}

	p.Read(r)
	if r.Err() != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTruncated, t, r.Err())
	}

	return p, nil
}

// Unmarshal decodes a complete extension packet
func Unmarshal(data []byte) (Packet, error) {
	r := bitcodec.NewReader(data)
	if !Probe(r) {
		return nil, ErrBadMagic
	}

	return Decode(r)
}

// Handle decodes data and processes the packet it contains.
// The packet is returned even if processing failed.
func (ctx *Context) Handle(data []byte) (Packet, error) {
	p, err := Unmarshal(data)
	if err != nil {
		if ctx.Debug && errors.Is(err, ErrUnknownType) {
			panic(err)
		}
		return nil, err
	}

	return p, ctx.Process(p)
}

// Process applies an already decoded packet
func (ctx *Context) Process(p Packet) error {
	if ctx.World == nil {
		return ErrNoWorld
	}

	if err := p.Process(ctx); err != nil {
		return fmt.Errorf("%s: %w", p.Type(), err)
	}

	return nil
}
