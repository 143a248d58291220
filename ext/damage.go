package ext

import (
	"fmt"
	"math"

	"github.com/HimbeerserverDE/extchannel/bitcodec"
)

// DamageShape tells which fields of a Damage are in use
type DamageShape uint8

const (
	DamageAtPoint DamageShape = iota
	DamageInRange
	DamageInBox
)

// A Damage is handed to World.Damage by the damage packets
type Damage struct {
	Shape     DamageShape
	Inflictor Entity
	Kind      uint32
	Amount    float32

	// DamageAtPoint
	Target    Entity
	HitPoint  bitcodec.Vector
	Direction bitcodec.Vector

	// DamageInRange
	Center  bitcodec.Vector
	HotSpot float32
	FallOff float32

	// DamageInBox
	Min bitcodec.Vector
	Max bitcodec.Vector
}

// DamageHeader is shared by all damage packets.
// Amounts travel as hundredths to keep two decimal digits.
type DamageHeader struct {
	EntityHeader
	Kind   uint32
	Amount float32
}

func (h *DamageHeader) writeDamage(w *bitcodec.Writer) {
	h.writeEntity(w)
	w.WriteVarUint(h.Kind)

	hundredths := math.Round(float64(h.Amount) * 100)
	if hundredths < 0 {
		hundredths = 0
	} else if hundredths > math.MaxUint32 {
		hundredths = math.MaxUint32
	}
	w.WriteVarUint(uint32(hundredths))
}

func (h *DamageHeader) readDamage(r *bitcodec.Reader) {
	h.readEntity(r)
	h.Kind = r.ReadVarUint()
	h.Amount = float32(float64(r.ReadVarUint()) / 100)
}

func (h *DamageHeader) damage(ctx *Context, shape DamageShape) (Damage, error) {
	inflictor, err := h.resolve(ctx)
	if err != nil {
		return Damage{}, err
	}

	return Damage{
		Shape:     shape,
		Inflictor: inflictor,
		Kind:      h.Kind,
		Amount:    h.Amount,
	}, nil
}

// DamagePoint damages one object at a point
type DamagePoint struct {
	DamageHeader
	Target    EntityRef
	HitPoint  bitcodec.Vector
	Direction bitcodec.Vector
}

func (p *DamagePoint) Type() Type { return TypeDamagePoint }

func (p *DamagePoint) Write(w *bitcodec.Writer) bool {
	p.writeDamage(w)
	w.WriteEntityRef(uint32(p.Target))
	w.WriteVector(p.HitPoint)
	w.WriteVector(p.Direction)
	return true
}

func (p *DamagePoint) Read(r *bitcodec.Reader) {
	p.readDamage(r)
	p.Target = EntityRef(r.ReadEntityRef())
	p.HitPoint = r.ReadVector()
	p.Direction = r.ReadVector()
}

func (p *DamagePoint) Process(ctx *Context) error {
	d, err := p.damage(ctx, DamageAtPoint)
	if err != nil {
		return err
	}

	target, ok := Resolve(ctx.World, p.Target)
	if !ok {
		return fmt.Errorf("target: %w: %d", ErrInvalidReference, uint32(p.Target))
	}

	d.Target = target
	d.HitPoint = p.HitPoint
	d.Direction = p.Direction
	ctx.World.Damage(d)
	return nil
}

// DamageRange damages everything around a center,
// full strength within HotSpot and nothing beyond FallOff
type DamageRange struct {
	DamageHeader
	Center  bitcodec.Vector
	HotSpot float32
	FallOff float32
}

func (p *DamageRange) Type() Type { return TypeDamageRange }

func (p *DamageRange) Write(w *bitcodec.Writer) bool {
	p.writeDamage(w)
	w.WriteVector(p.Center)
	w.WriteFloat(p.HotSpot)
	w.WriteFloat(p.FallOff)
	return true
}

func (p *DamageRange) Read(r *bitcodec.Reader) {
	p.readDamage(r)
	p.Center = r.ReadVector()
	p.HotSpot = r.ReadFloat()
	p.FallOff = r.ReadFloat()
}

func (p *DamageRange) Process(ctx *Context) error {
	d, err := p.damage(ctx, DamageInRange)
	if err != nil {
		return err
	}

	d.Center = p.Center
	d.HotSpot = p.HotSpot
	d.FallOff = p.FallOff
	ctx.World.Damage(d)
	return nil
}

// DamageBox damages everything inside an axis aligned box
type DamageBox struct {
	DamageHeader
	Min bitcodec.Vector
	Max bitcodec.Vector
}

func (p *DamageBox) Type() Type { return TypeDamageBox }

func (p *DamageBox) Write(w *bitcodec.Writer) bool {
	p.writeDamage(w)
	w.WriteVector(p.Min)
	w.WriteVector(p.Max)
	return true
}

func (p *DamageBox) Read(r *bitcodec.Reader) {
	p.readDamage(r)
	p.Min = r.ReadVector()
	p.Max = r.ReadVector()
}

func (p *DamageBox) Process(ctx *Context) error {
	d, err := p.damage(ctx, DamageInBox)
	if err != nil {
		return err
	}

	d.Min = p.Min
	d.Max = p.Max
	ctx.World.Damage(d)
	return nil
}

// ChangeLevel switches every participant to another level
type ChangeLevel struct {
	Level string
}

func (p *ChangeLevel) Type() Type { return TypeChangeLevel }

func (p *ChangeLevel) Write(w *bitcodec.Writer) bool {
	if p.Level == "" {
		return false
	}

	w.WritePath(p.Level)
	return true
}

func (p *ChangeLevel) Read(r *bitcodec.Reader) {
	p.Level = r.ReadPath()
}

func (p *ChangeLevel) Process(ctx *Context) error {
	return ctx.World.ChangeLevel(p.Level)
}
