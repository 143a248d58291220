package ext_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/HimbeerserverDE/extchannel/bitcodec"
	"github.com/HimbeerserverDE/extchannel/ext"
	"github.com/HimbeerserverDE/extchannel/simworld"
)

func TestRegistryIsComplete(t *testing.T) {
	for _, typ := range ext.Types() {
		p, err := ext.New(typ)
		if err != nil {
			t.Fatalf("New(%s): %v", typ, err)
		}
		if p.Type() != typ {
			t.Fatalf("New(%s) returned a %s", typ, p.Type())
		}
	}

	n := ext.Type(len(ext.Types()))
	if _, err := ext.New(n); !errors.Is(err, ext.ErrUnknownType) {
		t.Fatalf("New(%d): expected ErrUnknownType, got %v", n, err)
	}
	if _, err := ext.New(0xFFFFFFFF); !errors.Is(err, ext.ErrUnknownType) {
		t.Fatalf("New(max): expected ErrUnknownType, got %v", err)
	}
}

func TestCreateUsesDictionaryIndex(t *testing.T) {
	d := ext.DefaultClasses()
	pl := bitcodec.Placement{Pos: bitcodec.Vector{1, 2, 3}}

	p := ext.NewEntityCreate(d, `classes\items\health.ecl`, pl)
	if p.ClassIndex != 5 || p.Class != "" {
		t.Fatalf("expected index 5 without name, got %d %q", p.ClassIndex, p.Class)
	}

	data, err := ext.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := ext.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	create, ok := got.(*ext.EntityCreate)
	if !ok {
		t.Fatalf("expected *EntityCreate, got %T", got)
	}
	if create.Placement != pl {
		t.Fatalf("placement: expected %v, got %v", pl, create.Placement)
	}

	name, ok := create.ClassName(d)
	if !ok || name != `Classes\Items\Health.ecl` {
		t.Fatalf("ClassName: got %q %v", name, ok)
	}
}

func TestCreateOutOfBand(t *testing.T) {
	d := ext.DefaultClasses()
	p := ext.NewEntityCreate(d, `CLASSES\CUSTOM.ECL`, bitcodec.Placement{})
	if p.ClassIndex != ext.ClassOutOfBand {
		t.Fatalf("expected out of band index, got %d", p.ClassIndex)
	}

	if _, err := ext.Marshal(&ext.EntityCreate{ClassIndex: ext.ClassOutOfBand}); !errors.Is(err, ext.ErrNotSent) {
		t.Fatalf("expected ErrNotSent for an empty class name, got %v", err)
	}
	if _, err := ext.Marshal(&ext.EntityCreate{ClassIndex: 256}); !errors.Is(err, ext.ErrNotSent) {
		t.Fatalf("expected ErrNotSent for index 256, got %v", err)
	}
}

func TestDeleteSameClass(t *testing.T) {
	data, err := ext.Marshal(&ext.EntityDelete{EntityHeader: ext.At(42), SameClass: true})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := ext.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	del := got.(*ext.EntityDelete)
	if del.Entity != 42 || !del.SameClass {
		t.Fatalf("got %+v", del)
	}
}

func TestPropertyByName(t *testing.T) {
	w := simworld.New("TEST")
	ctx := ext.NewContext(w)

	e, _ := w.Spawn("A", bitcodec.Placement{})
	ref := ext.RefOf(e)

	p := &ext.EntityProperty{
		EntityHeader: ext.At(ref),
		Key:          ext.PropertyKey{ByName: true, ID: ext.PropertyHash("Speed")},
		Number:       12.5,
	}

	data, err := ext.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := ctx.Handle(data); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	prop, _ := e.Property(ext.PropertyKey{ID: simworld.PropSpeed})
	if prop.Number != 12.5 {
		t.Fatalf("expected 12.5, got %v", prop.Number)
	}

	p.Key.ID = ext.PropertyHash("name")
	if err := ctx.Process(p); !errors.Is(err, ext.ErrPropertyType) {
		t.Fatalf("expected ErrPropertyType, got %v", err)
	}

	p.Key.ID = ext.PropertyHash("nonexistent")
	if err := ctx.Process(p); !errors.Is(err, ext.ErrNoProperty) {
		t.Fatalf("expected ErrNoProperty, got %v", err)
	}
}

type everywhere struct {
	*simworld.World
	e       ext.Entity
	lookups int
}

func (w *everywhere) Lookup(id uint32) (ext.Entity, bool) {
	w.lookups++
	return w.e, true
}

func TestSentinelNeverResolves(t *testing.T) {
	sim := simworld.New("TEST")
	e, _ := sim.Spawn("A", bitcodec.Placement{})
	w := &everywhere{World: sim, e: e}

	for _, r := range []ext.EntityRef{ext.NoEntity, ext.NoEntity + 1, 0xFFFFFFFF} {
		if _, ok := ext.Resolve(w, r); ok {
			t.Fatalf("%#x resolved", uint32(r))
		}
	}
	if w.lookups != 0 {
		t.Fatalf("invalid references reached the world %d times", w.lookups)
	}

	if _, ok := ext.Resolve(w, 7); !ok || w.lookups != 1 {
		t.Fatalf("valid reference did not resolve")
	}

	e.Destroy()
	if _, ok := ext.Resolve(w, 7); ok {
		t.Fatalf("deleted entity resolved")
	}
}

func unknownPacket() []byte {
	w := bitcodec.NewWriter()
	w.WriteBits(ext.Magic, 32)
	w.WriteVarUint(99)
	return w.Bytes()
}

func TestUnknownTypeIsDropped(t *testing.T) {
	ctx := ext.NewContext(simworld.New("TEST"))

	p, err := ctx.Handle(unknownPacket())
	if p != nil || !errors.Is(err, ext.ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v %v", p, err)
	}
}

func TestUnknownTypePanicsInDebug(t *testing.T) {
	ctx := ext.NewContext(simworld.New("TEST"))
	ctx.Debug = true

	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic")
		}
	}()

	ctx.Handle(unknownPacket())
}

func TestTruncated(t *testing.T) {
	data, err := ext.Marshal(&ext.EntityHealth{EntityHeader: ext.At(1), Health: 50})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	if _, err := ext.Unmarshal(data[:8]); !errors.Is(err, ext.ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if _, err := ext.Unmarshal(data[:2]); !errors.Is(err, ext.ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
	if _, err := ext.Unmarshal([]byte("hello world")); !errors.Is(err, ext.ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestTooManyEventFields(t *testing.T) {
	p := &ext.EntityEvent{EntityHeader: ext.At(1), Fields: make([]uint32, ext.MaxEventFields+1)}
	if _, err := ext.Marshal(p); !errors.Is(err, ext.ErrNotSent) {
		t.Fatalf("expected ErrNotSent, got %v", err)
	}

	p.Fields = p.Fields[:ext.MaxEventFields]
	if _, err := ext.Marshal(p); err != nil {
		t.Fatalf("Marshal with %d fields: %v", ext.MaxEventFields, err)
	}
}

func TestCopyCountIsClamped(t *testing.T) {
	data, err := ext.Marshal(&ext.EntityCopy{EntityHeader: ext.At(1), Count: 100})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	got, err := ext.Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if n := got.(*ext.EntityCopy).Count; n != ext.MaxCopies {
		t.Fatalf("expected %d copies, got %d", ext.MaxCopies, n)
	}
}

func TestSessionProps(t *testing.T) {
	ctx := ext.NewContext(simworld.New("TEST"))
	ctx.Props[0] = 0xAA

	data := make([]byte, 20)
	for i := range data {
		data[i] = byte(i + 1)
	}

	p := &ext.SessionPropsPatch{Offset: 2040, Data: data}
	b, err := ext.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := ctx.Handle(b)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if n := len(got.(*ext.SessionPropsPatch).Data); n != 8 {
		t.Fatalf("expected 8 bytes on the wire, got %d", n)
	}

	for i := 0; i < 8; i++ {
		if ctx.Props[2040+i] != byte(i+1) {
			t.Fatalf("byte %d: got %d", 2040+i, ctx.Props[2040+i])
		}
	}
	if ctx.Props[0] != 0xAA || ctx.Props[2039] != 0 {
		t.Fatalf("bytes outside the patch changed")
	}

	if _, err := ext.Marshal(&ext.SessionPropsPatch{Offset: ext.SessionPropsSize}); !errors.Is(err, ext.ErrNotSent) {
		t.Fatalf("expected ErrNotSent, got %v", err)
	}
	if _, err := ctx.Props.Patch(ext.SessionPropsSize, data); !errors.Is(err, ext.ErrOffset) {
		t.Fatalf("expected ErrOffset, got %v", err)
	}

	whole := ext.NewSessionPropsPatch(ctx.Props, 0, ext.SessionPropsSize)
	if _, err := ext.Marshal(whole); err != nil {
		t.Fatalf("whole blob: %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	pl := bitcodec.Placement{Pos: bitcodec.Vector{1.5, -2, 300}}
	dmg := ext.DamageHeader{EntityHeader: ext.At(1), Kind: 2, Amount: 12.5}

	packets := []ext.Packet{
		&ext.EntityCreate{ClassIndex: 3, Placement: pl},
		&ext.EntityCreate{ClassIndex: ext.ClassOutOfBand, Class: `CLASSES\CUSTOM.ECL`, Placement: pl},
		&ext.EntityDelete{EntityHeader: ext.At(5)},
		&ext.EntityCopy{EntityHeader: ext.At(5), Count: 3},
		&ext.EntityEvent{EntityHeader: ext.At(5), Code: 1000, Fields: []uint32{1, 0xFFFFFFFF, 3}},
		&ext.EntityEvent{EntityHeader: ext.At(5), Code: 1},
		&ext.EntityTeleport{EntityHeader: ext.At(5), Placement: pl, Relative: true},
		&ext.EntitySetPosition{EntityHeader: ext.At(5), Position: pl.Pos},
		&ext.EntitySetRotation{EntityHeader: ext.At(5), Relative: true},
		&ext.EntityParent{EntityHeader: ext.At(5), Parent: ext.NoEntity},
		&ext.EntityProperty{EntityHeader: ext.At(5), Key: ext.PropertyKey{ID: 3}, IsString: true, String: "hello"},
		&ext.EntityProperty{EntityHeader: ext.At(5), Key: ext.PropertyKey{ByName: true, ID: 0xDEADBEEF}, Number: -1e100},
		&ext.EntityHealth{EntityHeader: ext.At(5), Health: 99.5},
		&ext.EntityFlags{EntityHeader: ext.At(5), Flags: 0x80000001, Category: ext.FlagsSpawn, Remove: true},
		&ext.EntityMove{EntityHeader: ext.At(5), Velocity: bitcodec.Vector{0, 0, -9.81}},
		&ext.EntityMove{EntityHeader: ext.At(5), Spin: bitcodec.Vector{0, 90, 0}},
		&ext.EntityStop{EntityHeader: ext.At(5), Rotation: true},
		&ext.DamagePoint{DamageHeader: dmg, Target: 6, HitPoint: pl.Pos, Direction: bitcodec.Vector{1}},
		&ext.DamageRange{DamageHeader: dmg, Center: pl.Pos, HotSpot: 1, FallOff: 10},
		&ext.DamageBox{DamageHeader: dmg, Min: bitcodec.Vector{-1, -1, -1}, Max: pl.Pos},
		&ext.ChangeLevel{Level: `LEVELS\KARNAK.WLD`},
		&ext.SessionPropsPatch{Offset: 10, Data: []byte{1, 2, 3}},
	}

	for _, p := range packets {
		data, err := ext.Marshal(p)
		if err != nil {
			t.Fatalf("%s: Marshal: %v", p.Type(), err)
		}

		got, err := ext.Unmarshal(data)
		if err != nil {
			t.Fatalf("%s: Unmarshal: %v", p.Type(), err)
		}
		if !reflect.DeepEqual(got, p) {
			t.Fatalf("%s: expected %+v, got %+v", p.Type(), p, got)
		}
	}
}

func spawn(t *testing.T, w *simworld.World, class string) *simworld.Entity {
	e, err := w.Spawn(class, bitcodec.Placement{})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	return e.(*simworld.Entity)
}

func process(t *testing.T, ctx *ext.Context, p ext.Packet) {
	data, err := ext.Marshal(p)
	if err != nil {
		t.Fatalf("%s: Marshal: %v", p.Type(), err)
	}
	if _, err := ctx.Handle(data); err != nil {
		t.Fatalf("%s: Handle: %v", p.Type(), err)
	}
}

func TestProcess(t *testing.T) {
	w := simworld.New("TEST")
	ctx := ext.NewContext(w)

	process(t, ctx, ext.NewEntityCreate(ctx.Classes, `Classes\Enemies\Walker.ecl`, bitcodec.Placement{}))
	if w.Count() != 1 {
		t.Fatalf("expected 1 entity, got %d", w.Count())
	}
	walker := w.Entities()[0].(*simworld.Entity)
	if walker.Class() != `Classes\Enemies\Walker.ecl` {
		t.Fatalf("spawned %q", walker.Class())
	}
	ref := ext.RefOf(walker)

	process(t, ctx, &ext.EntityCopy{EntityHeader: ext.At(ref), Count: 3})
	if w.Count() != 4 {
		t.Fatalf("expected 4 entities, got %d", w.Count())
	}

	other := spawn(t, w, "B")
	process(t, ctx, &ext.EntityDelete{EntityHeader: ext.At(ref), SameClass: true})
	if w.Count() != 1 || other.Deleted() {
		t.Fatalf("expected only the other class to survive, %d left", w.Count())
	}

	process(t, ctx, &ext.EntityTeleport{
		EntityHeader: ext.At(ext.RefOf(other)),
		Placement:    bitcodec.Placement{Pos: bitcodec.Vector{1, 1, 1}},
	})
	process(t, ctx, &ext.EntitySetPosition{
		EntityHeader: ext.At(ext.RefOf(other)),
		Position:     bitcodec.Vector{1, 2, 3},
		Relative:     true,
	})
	if pos := other.Placement().Pos; pos != (bitcodec.Vector{2, 3, 4}) {
		t.Fatalf("expected (2,3,4), got %v", pos)
	}

	process(t, ctx, &ext.EntityFlags{EntityHeader: ext.At(ext.RefOf(other)), Flags: 0b110, Category: ext.FlagsPhysics})
	process(t, ctx, &ext.EntityFlags{EntityHeader: ext.At(ext.RefOf(other)), Flags: 0b010, Category: ext.FlagsPhysics, Remove: true})
	if f := other.Flags(ext.FlagsPhysics); f != 0b100 {
		t.Fatalf("expected flags 0b100, got %#b", f)
	}

	process(t, ctx, &ext.EntityMove{EntityHeader: ext.At(ext.RefOf(other)), Velocity: bitcodec.Vector{1, 0, 0}})
	w.Step(2)
	if x := other.Placement().Pos[0]; x != 4 {
		t.Fatalf("expected x=4 after moving, got %v", x)
	}
	process(t, ctx, &ext.EntityStop{EntityHeader: ext.At(ext.RefOf(other))})
	if v := other.Velocity(); v != (bitcodec.Vector{}) {
		t.Fatalf("still moving at %v", v)
	}

	process(t, ctx, &ext.EntityMove{EntityHeader: ext.At(ext.RefOf(other)), Spin: bitcodec.Vector{0, 90, 0}})
	process(t, ctx, &ext.EntityStop{EntityHeader: ext.At(ext.RefOf(other))})
	if s := other.Spin(); s != (bitcodec.Vector{0, 90, 0}) {
		t.Fatalf("stop without rotation changed the spin to %v", s)
	}
	process(t, ctx, &ext.EntityStop{EntityHeader: ext.At(ext.RefOf(other)), Rotation: true})
	if s := other.Spin(); s != (bitcodec.Vector{}) {
		t.Fatalf("still spinning at %v", s)
	}

	process(t, ctx, &ext.DamageRange{
		DamageHeader: ext.DamageHeader{EntityHeader: ext.At(ext.RefOf(other)), Amount: 25},
		Center:       other.Placement().Pos,
		HotSpot:      1,
		FallOff:      5,
	})
	if hp := other.Health(); hp != 75 {
		t.Fatalf("expected 75 health, got %v", hp)
	}

	process(t, ctx, &ext.ChangeLevel{Level: `LEVELS\NEXT.WLD`})
	if w.Count() != 0 || w.Level() != `LEVELS\NEXT.WLD` {
		t.Fatalf("level did not change")
	}
}

func TestParent(t *testing.T) {
	w := simworld.New("TEST")
	ctx := ext.NewContext(w)

	child := spawn(t, w, "A")
	parent := spawn(t, w, "B")

	process(t, ctx, &ext.EntityParent{EntityHeader: ext.At(ext.RefOf(child)), Parent: ext.RefOf(parent)})
	if child.Parent() != parent {
		t.Fatalf("not attached")
	}

	process(t, ctx, &ext.EntityParent{EntityHeader: ext.At(ext.RefOf(child)), Parent: ext.NoEntity})
	if child.Parent() != nil {
		t.Fatalf("not detached")
	}

	err := ctx.Process(&ext.EntityParent{EntityHeader: ext.At(ext.RefOf(child)), Parent: 1000})
	if !errors.Is(err, ext.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
}

func TestEventReferences(t *testing.T) {
	w := simworld.New("TEST")
	ctx := ext.NewContext(w)
	ctx.EventRefs = func(code uint32) []int {
		if code == 7 {
			return []int{1}
		}
		return nil
	}

	target := spawn(t, w, "A")
	other := spawn(t, w, "B")

	process(t, ctx, &ext.EntityEvent{
		EntityHeader: ext.At(ext.RefOf(target)),
		Code:         7,
		Fields:       []uint32{0, other.ID()},
	})

	evs := target.Events()
	if len(evs) != 1 || evs[0].Entities[1] != ext.Entity(other) {
		t.Fatalf("expected field 1 to resolve, got %+v", evs)
	}

	err := ctx.Process(&ext.EntityEvent{
		EntityHeader: ext.At(ext.RefOf(target)),
		Code:         7,
		Fields:       []uint32{0, 1000},
	})
	if !errors.Is(err, ext.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
	if len(target.Events()) != 2 {
		t.Fatalf("event with a stale reference was not delivered")
	}
}

func TestUnresolvedTarget(t *testing.T) {
	w := simworld.New("TEST")
	ctx := ext.NewContext(w)

	e := spawn(t, w, "A")
	e.Destroy()

	err := ctx.Process(&ext.EntityHealth{EntityHeader: ext.At(ext.RefOf(e)), Health: 1})
	if !errors.Is(err, ext.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}

	if err := (&ext.Context{}).Process(&ext.EntityStop{}); !errors.Is(err, ext.ErrNoWorld) {
		t.Fatalf("expected ErrNoWorld, got %v", err)
	}
}
