package ext

import (
	"fmt"
	"math"

	"github.com/HimbeerserverDE/extchannel/bitcodec"
)

// MaxCopies is the largest EntityCopy count
const MaxCopies = 31

// MaxEventFields is the largest number of fields an EntityEvent carries
const MaxEventFields = 64

// EntityHeader is embedded by every packet addressed to one object.
// The reference always comes first in the body.
type EntityHeader struct {
	Entity EntityRef
}

// At returns the header addressing r
func At(r EntityRef) EntityHeader {
	return EntityHeader{Entity: r}
}

func (p *EntityHeader) writeEntity(w *bitcodec.Writer) {
	w.WriteEntityRef(uint32(p.Entity))
}

func (p *EntityHeader) readEntity(r *bitcodec.Reader) {
	p.Entity = EntityRef(r.ReadEntityRef())
}

func (p *EntityHeader) resolve(ctx *Context) (Entity, error) {
	e, ok := Resolve(ctx.World, p.Entity)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidReference, uint32(p.Entity))
	}

	return e, nil
}

// EntityCreate spawns an object.
// Classes in the dictionary are sent as a one byte index,
// anything else as ClassOutOfBand followed by the name.
type EntityCreate struct {
	ClassIndex int
	Class      string
	Placement  bitcodec.Placement
}

// NewEntityCreate picks the shortest encoding of class using d
func NewEntityCreate(d *ClassDict, class string, pl bitcodec.Placement) *EntityCreate {
	if i, ok := d.Index(class); ok {
		return &EntityCreate{ClassIndex: i, Placement: pl}
	}

	return &EntityCreate{ClassIndex: ClassOutOfBand, Class: class, Placement: pl}
}

func (p *EntityCreate) Type() Type { return TypeEntityCreate }

func (p *EntityCreate) Write(w *bitcodec.Writer) bool {
	if p.ClassIndex < 0 || p.ClassIndex > ClassOutOfBand {
		return false
	}
	if p.ClassIndex == ClassOutOfBand && p.Class == "" {
		return false
	}

	w.WriteBits(uint32(p.ClassIndex), 8)
	if p.ClassIndex == ClassOutOfBand {
		w.WritePath(p.Class)
	}

	w.WritePlacement(p.Placement)
	return true
}

func (p *EntityCreate) Read(r *bitcodec.Reader) {
	p.ClassIndex = int(r.ReadBits(8))
	p.Class = ""
	if p.ClassIndex == ClassOutOfBand {
		p.Class = r.ReadPath()
	}

	p.Placement = r.ReadPlacement()
}

// ClassName returns the class name, looking the index up in d
func (p *EntityCreate) ClassName(d *ClassDict) (string, bool) {
	if p.ClassIndex == ClassOutOfBand {
		return p.Class, p.Class != ""
	}

	return d.Name(p.ClassIndex)
}

func (p *EntityCreate) Process(ctx *Context) error {
	class, ok := p.ClassName(ctx.Classes)
	if !ok {
		return fmt.Errorf("%w: index %d", ErrUnknownClass, p.ClassIndex)
	}

	_, err := ctx.World.Spawn(class, p.Placement)
	return err
}

// EntityDelete destroys an object, optionally along with
// every other object of its class
type EntityDelete struct {
	EntityHeader
	SameClass bool
}

func (p *EntityDelete) Type() Type { return TypeEntityDelete }

func (p *EntityDelete) Write(w *bitcodec.Writer) bool {
	p.writeEntity(w)
	w.WriteBool(p.SameClass)
	return true
}

func (p *EntityDelete) Read(r *bitcodec.Reader) {
	p.readEntity(r)
	p.SameClass = r.ReadBool()
}

func (p *EntityDelete) Process(ctx *Context) error {
	e, err := p.resolve(ctx)
	if err != nil {
		return err
	}

	if !p.SameClass {
		e.Destroy()
		return nil
	}

	class := e.Class()
	for _, other := range ctx.World.Entities() {
		if !other.Deleted() && other.Class() == class {
			other.Destroy()
		}
	}

	return nil
}

// EntityCopy clones an object Count times
type EntityCopy struct {
	EntityHeader
	Count int
}

func (p *EntityCopy) Type() Type { return TypeEntityCopy }

func (p *EntityCopy) Write(w *bitcodec.Writer) bool {
	n := p.Count
	if n < 0 {
		n = 0
	} else if n > MaxCopies {
		n = MaxCopies
	}

	p.writeEntity(w)
	w.WriteBits(uint32(n), 5)
	return true
}

func (p *EntityCopy) Read(r *bitcodec.Reader) {
	p.readEntity(r)
	p.Count = int(r.ReadBits(5))
}

func (p *EntityCopy) Process(ctx *Context) error {
	e, err := p.resolve(ctx)
	if err != nil {
		return err
	}

	for i := 0; i < p.Count; i++ {
		if _, err := ctx.World.Clone(e); err != nil {
			return err
		}
	}

	return nil
}

// EntityEvent sends an event with up to 64 raw fields to an object
type EntityEvent struct {
	EntityHeader
	Code   uint32
	Fields []uint32
}

func (p *EntityEvent) Type() Type { return TypeEntityEvent }

func (p *EntityEvent) Write(w *bitcodec.Writer) bool {
	if len(p.Fields) > MaxEventFields {
		return false
	}

	p.writeEntity(w)
	w.WriteVarUint(p.Code)

	w.WriteBool(len(p.Fields) > 0)
	if len(p.Fields) > 0 {
		w.WriteBits(uint32(len(p.Fields)-1), 6)
		for _, f := range p.Fields {
			w.WriteBits(f, 32)
		}
	}

	return true
}

func (p *EntityEvent) Read(r *bitcodec.Reader) {
	p.readEntity(r)
	p.Code = r.ReadVarUint()

	p.Fields = nil
	if r.ReadBool() {
		n := int(r.ReadBits(6)) + 1
		p.Fields = make([]uint32, n)
		for i := range p.Fields {
			p.Fields[i] = r.ReadBits(32)
		}
	}
}

func (p *EntityEvent) Process(ctx *Context) error {
	e, err := p.resolve(ctx)
	if err != nil {
		return err
	}

	ev := Event{Code: p.Code, Fields: p.Fields}

	var stale error
	if ctx.EventRefs != nil {
		for _, i := range ctx.EventRefs(p.Code) {
			if i < 0 || i >= len(p.Fields) {
				continue
			}

			ref := EntityRef(p.Fields[i])
			if target, ok := Resolve(ctx.World, ref); ok {
				if ev.Entities == nil {
					ev.Entities = make(map[int]Entity)
				}
				ev.Entities[i] = target
			} else if ref.Valid() {
				stale = fmt.Errorf("event %d field %d: %w: %d", p.Code, i, ErrInvalidReference, uint32(ref))
			}
		}
	}

	e.HandleEvent(ev)
	return stale
}

// EntityTeleport sets the placement of an object
type EntityTeleport struct {
	EntityHeader
	Placement bitcodec.Placement
	Relative  bool
}

func (p *EntityTeleport) Type() Type { return TypeEntityTeleport }

func (p *EntityTeleport) Write(w *bitcodec.Writer) bool {
	p.writeEntity(w)
	w.WritePlacement(p.Placement)
	w.WriteBool(p.Relative)
	return true
}

func (p *EntityTeleport) Read(r *bitcodec.Reader) {
	p.readEntity(r)
	p.Placement = r.ReadPlacement()
	p.Relative = r.ReadBool()
}

func (p *EntityTeleport) Process(ctx *Context) error {
	e, err := p.resolve(ctx)
	if err != nil {
		return err
	}

	pl := p.Placement
	if p.Relative {
		cur := e.Placement()
		pl.Pos = addVectors(cur.Pos, pl.Pos)
		pl.Rot = addAngles(cur.Rot, pl.Rot)
	}

	e.SetPlacement(pl)
	return nil
}

// EntitySetPosition moves an object without rotating it
type EntitySetPosition struct {
	EntityHeader
	Position bitcodec.Vector
	Relative bool
}

func (p *EntitySetPosition) Type() Type { return TypeEntitySetPosition }

func (p *EntitySetPosition) Write(w *bitcodec.Writer) bool {
	p.writeEntity(w)
	w.WriteVector(p.Position)
	w.WriteBool(p.Relative)
	return true
}

func (p *EntitySetPosition) Read(r *bitcodec.Reader) {
	p.readEntity(r)
	p.Position = r.ReadVector()
	p.Relative = r.ReadBool()
}

func (p *EntitySetPosition) Process(ctx *Context) error {
	e, err := p.resolve(ctx)
	if err != nil {
		return err
	}

	pl := e.Placement()
	if p.Relative {
		pl.Pos = addVectors(pl.Pos, p.Position)
	} else {
		pl.Pos = p.Position
	}

	e.SetPlacement(pl)
	return nil
}

// EntitySetRotation rotates an object without moving it
type EntitySetRotation struct {
	EntityHeader
	Rotation bitcodec.Vector
	Relative bool
}

func (p *EntitySetRotation) Type() Type { return TypeEntitySetRotation }

func (p *EntitySetRotation) Write(w *bitcodec.Writer) bool {
	p.writeEntity(w)
	w.WriteAngles(p.Rotation)
	w.WriteBool(p.Relative)
	return true
}

func (p *EntitySetRotation) Read(r *bitcodec.Reader) {
	p.readEntity(r)
	p.Rotation = r.ReadAngles()
	p.Relative = r.ReadBool()
}

func (p *EntitySetRotation) Process(ctx *Context) error {
	e, err := p.resolve(ctx)
	if err != nil {
		return err
	}

	pl := e.Placement()
	if p.Relative {
		pl.Rot = addAngles(pl.Rot, p.Rotation)
	} else {
		pl.Rot = p.Rotation
	}

	e.SetPlacement(pl)
	return nil
}

// EntityParent attaches an object to another one.
// A Parent of NoEntity detaches it.
type EntityParent struct {
	EntityHeader
	Parent EntityRef
}

func (p *EntityParent) Type() Type { return TypeEntityParent }

func (p *EntityParent) Write(w *bitcodec.Writer) bool {
	p.writeEntity(w)
	w.WriteEntityRef(uint32(p.Parent))
	return true
}

func (p *EntityParent) Read(r *bitcodec.Reader) {
	p.readEntity(r)
	p.Parent = EntityRef(r.ReadEntityRef())
}

func (p *EntityParent) Process(ctx *Context) error {
	e, err := p.resolve(ctx)
	if err != nil {
		return err
	}

	if !p.Parent.Valid() {
		e.SetParent(nil)
		return nil
	}

	parent, ok := Resolve(ctx.World, p.Parent)
	if !ok {
		return fmt.Errorf("parent: %w: %d", ErrInvalidReference, uint32(p.Parent))
	}

	e.SetParent(parent)
	return nil
}

// EntityProperty changes one property of an object
type EntityProperty struct {
	EntityHeader
	Key PropertyKey

	IsString bool
	Number   float64
	String   string
}

func (p *EntityProperty) Type() Type { return TypeEntityProperty }

func (p *EntityProperty) Write(w *bitcodec.Writer) bool {
	p.writeEntity(w)

	w.WriteBool(p.Key.ByName)
	if p.Key.ByName {
		w.WriteBits(p.Key.ID, 32)
	} else {
		w.WriteVarUint(p.Key.ID)
	}

	w.WriteBool(p.IsString)
	if p.IsString {
		w.WriteVarUint(uint32(len(p.String)))
		w.WriteBytes([]byte(p.String))
	} else {
		bits := math.Float64bits(p.Number)
		w.WriteBits(uint32(bits>>32), 32)
		w.WriteBits(uint32(bits), 32)
	}

	return true
}

func (p *EntityProperty) Read(r *bitcodec.Reader) {
	p.readEntity(r)

	p.Key.ByName = r.ReadBool()
	if p.Key.ByName {
		p.Key.ID = r.ReadBits(32)
	} else {
		p.Key.ID = r.ReadVarUint()
	}

	p.IsString = r.ReadBool()
	if p.IsString {
		n := int(r.ReadVarUint())
		p.String = string(r.ReadBytes(n))
	} else {
		hi := uint64(r.ReadBits(32))
		lo := uint64(r.ReadBits(32))
		p.Number = math.Float64frombits(hi<<32 | lo)
	}
}

func (p *EntityProperty) Process(ctx *Context) error {
	e, err := p.resolve(ctx)
	if err != nil {
		return err
	}

	prop, ok := e.Property(p.Key)
	if !ok {
		return fmt.Errorf("%w: %+v", ErrNoProperty, p.Key)
	}

	want := PropertyNumber
	if p.IsString {
		want = PropertyString
	}
	if prop.Kind != want {
		return fmt.Errorf("%w: %q is a %s, got a %s", ErrPropertyType, prop.Name, prop.Kind, want)
	}

	if p.IsString {
		prop.String = p.String
	} else {
		prop.Number = p.Number
	}

	return nil
}

// EntityHealth sets the health of an object
type EntityHealth struct {
	EntityHeader
	Health float32
}

func (p *EntityHealth) Type() Type { return TypeEntityHealth }

func (p *EntityHealth) Write(w *bitcodec.Writer) bool {
	p.writeEntity(w)
	w.WriteFloat(p.Health)
	return true
}

func (p *EntityHealth) Read(r *bitcodec.Reader) {
	p.readEntity(r)
	p.Health = r.ReadFloat()
}

func (p *EntityHealth) Process(ctx *Context) error {
	e, err := p.resolve(ctx)
	if err != nil {
		return err
	}

	e.SetHealth(p.Health)
	return nil
}

// EntityFlags adds or removes bits in one flag word of an object
type EntityFlags struct {
	EntityHeader
	Flags    uint32
	Category FlagCategory
	Remove   bool
}

func (p *EntityFlags) Type() Type { return TypeEntityFlags }

func (p *EntityFlags) Write(w *bitcodec.Writer) bool {
	p.writeEntity(w)
	w.WriteVarUint(p.Flags)
	w.WriteBits(uint32(p.Category), 2)
	w.WriteBool(p.Remove)
	return true
}

func (p *EntityFlags) Read(r *bitcodec.Reader) {
	p.readEntity(r)
	p.Flags = r.ReadVarUint()
	p.Category = FlagCategory(r.ReadBits(2))
	p.Remove = r.ReadBool()
}

func (p *EntityFlags) Process(ctx *Context) error {
	e, err := p.resolve(ctx)
	if err != nil {
		return err
	}

	flags := e.Flags(p.Category)
	if p.Remove {
		flags &^= p.Flags
	} else {
		flags |= p.Flags
	}

	e.SetFlags(p.Category, flags)
	return nil
}

// EntityMove gives an object a velocity and an angular velocity
// in degrees per second. The spin is only sent when it is not zero.
type EntityMove struct {
	EntityHeader
	Velocity bitcodec.Vector
	Spin     bitcodec.Vector
}

func (p *EntityMove) Type() Type { return TypeEntityMove }

func (p *EntityMove) Write(w *bitcodec.Writer) bool {
	p.writeEntity(w)
	w.WriteVector(p.Velocity)

	spin := p.Spin != (bitcodec.Vector{})
	w.WriteBool(spin)
	if spin {
		w.WriteVector(p.Spin)
	}
	return true
}

func (p *EntityMove) Read(r *bitcodec.Reader) {
	p.readEntity(r)
	p.Velocity = r.ReadVector()
	if r.ReadBool() {
		p.Spin = r.ReadVector()
	}
}

func (p *EntityMove) Process(ctx *Context) error {
	e, err := p.resolve(ctx)
	if err != nil {
		return err
	}

	e.SetVelocity(p.Velocity)
	e.SetSpin(p.Spin)
	return nil
}

// EntityStop halts the movement and optionally the rotation of an object
type EntityStop struct {
	EntityHeader
	Rotation bool
}

func (p *EntityStop) Type() Type { return TypeEntityStop }

func (p *EntityStop) Write(w *bitcodec.Writer) bool {
	p.writeEntity(w)
	w.WriteBool(p.Rotation)
	return true
}

func (p *EntityStop) Read(r *bitcodec.Reader) {
	p.readEntity(r)
	p.Rotation = r.ReadBool()
}

func (p *EntityStop) Process(ctx *Context) error {
	e, err := p.resolve(ctx)
	if err != nil {
		return err
	}

	e.Stop(p.Rotation)
	return nil
}

func addVectors(a, b bitcodec.Vector) bitcodec.Vector {
	return bitcodec.Vector{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func addAngles(a, b bitcodec.Vector) bitcodec.Vector {
	var r bitcodec.Vector
	for i := range r {
		r[i] = bitcodec.WrapAngle(a[i] + b[i])
	}
	return r
}
