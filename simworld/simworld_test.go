package simworld

import (
	"testing"

	"github.com/HimbeerserverDE/extchannel/bitcodec"
	"github.com/HimbeerserverDE/extchannel/ext"
)

func TestChecksumFollowsState(t *testing.T) {
	a, b := New("LEVEL"), New("LEVEL")
	if a.Checksum() != b.Checksum() {
		t.Fatalf("empty worlds differ")
	}

	pl := bitcodec.Placement{Pos: bitcodec.Vector{1, 2, 3}}
	a.Spawn("A", pl)
	b.Spawn("A", pl)
	if a.Checksum() != b.Checksum() {
		t.Fatalf("identical worlds differ")
	}

	e, _ := b.Lookup(1)
	e.SetHealth(50)
	if a.Checksum() == b.Checksum() {
		t.Fatalf("health change not reflected")
	}

	e.Destroy()
	c := New("LEVEL")
	if b.Checksum() != c.Checksum() {
		t.Fatalf("deleted entity still counted")
	}
}

func TestCloneCopiesState(t *testing.T) {
	w := New("LEVEL")
	src, _ := w.Spawn("A", bitcodec.Placement{Pos: bitcodec.Vector{5}})
	src.SetFlags(ext.FlagsCollision, 3)

	dst, err := w.Clone(src)
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if dst.ID() == src.ID() {
		t.Fatalf("clone shares id %d", dst.ID())
	}
	if dst.Placement() != src.Placement() || dst.Flags(ext.FlagsCollision) != 3 {
		t.Fatalf("clone state differs")
	}

	p, _ := dst.Property(ext.PropertyKey{ID: PropSpeed})
	p.Number = 99
	q, _ := src.Property(ext.PropertyKey{ID: PropSpeed})
	if q.Number == 99 {
		t.Fatalf("clone shares properties")
	}
}

func TestDamageShapes(t *testing.T) {
	w := New("LEVEL")
	near, _ := w.Spawn("A", bitcodec.Placement{})
	mid, _ := w.Spawn("A", bitcodec.Placement{Pos: bitcodec.Vector{3}})
	far, _ := w.Spawn("A", bitcodec.Placement{Pos: bitcodec.Vector{10}})

	w.Damage(ext.Damage{Shape: ext.DamageInRange, Amount: 40, HotSpot: 1, FallOff: 5})
	if near.Health() != 60 || mid.Health() != 80 || far.Health() != 100 {
		t.Fatalf("range damage: %v %v %v", near.Health(), mid.Health(), far.Health())
	}

	w.Damage(ext.Damage{
		Shape:  ext.DamageInBox,
		Amount: 10,
		Min:    bitcodec.Vector{11, 1, 1},
		Max:    bitcodec.Vector{9, -1, -1},
	})
	if far.Health() != 90 || mid.Health() != 80 {
		t.Fatalf("box damage: %v %v", far.Health(), mid.Health())
	}

	w.Damage(ext.Damage{Shape: ext.DamageAtPoint, Amount: 5, Target: mid})
	if mid.Health() != 75 {
		t.Fatalf("point damage: %v", mid.Health())
	}
}

func TestChangeLevel(t *testing.T) {
	w := New("A")
	w.Spawn("X", bitcodec.Placement{})
	w.Step(1)

	if err := w.ChangeLevel(""); err != ErrNoLevel {
		t.Fatalf("expected ErrNoLevel, got %v", err)
	}
	if err := w.ChangeLevel("B"); err != nil {
		t.Fatalf("ChangeLevel: %v", err)
	}
	if w.Count() != 0 || w.Time() != 0 || w.Level() != "B" {
		t.Fatalf("level state not reset")
	}
}

func TestIDsMatchAFreshWorld(t *testing.T) {
	server := New("A")
	e, _ := server.Spawn("X", bitcodec.Placement{})
	e.Destroy()

	if server.Count() != 0 || server.Fresh() {
		t.Fatalf("a level that spawned something is not fresh")
	}

	client := New("A")
	if !client.Fresh() {
		t.Fatalf("new world not fresh")
	}

	// The ids already differ, a client could never follow
	a, _ := server.Spawn("X", bitcodec.Placement{})
	b, _ := client.Spawn("X", bitcodec.Placement{})
	if a.ID() == b.ID() {
		t.Fatalf("expected diverging ids, both got %d", a.ID())
	}

	for _, w := range []*World{server, client} {
		if err := w.ChangeLevel("B"); err != nil {
			t.Fatalf("ChangeLevel: %v", err)
		}
		if !w.Fresh() {
			t.Fatalf("world not fresh after a level change")
		}
	}

	a, _ = server.Spawn("X", bitcodec.Placement{})
	b, _ = client.Spawn("X", bitcodec.Placement{})
	if a.ID() != 1 || b.ID() != 1 {
		t.Fatalf("ids after level change: server %d, client %d", a.ID(), b.ID())
	}
	if server.Checksum() != client.Checksum() {
		t.Fatalf("checksums differ after level change")
	}
}

func TestSpin(t *testing.T) {
	w := New("A")
	e, _ := w.Spawn("X", bitcodec.Placement{Rot: bitcodec.Vector{0, 350, 0}})
	e.SetSpin(bitcodec.Vector{0, 20, 0})

	w.Step(1)
	if rot := e.Placement().Rot; rot != (bitcodec.Vector{0, 10, 0}) {
		t.Fatalf("expected rotation (0,10,0), got %v", rot)
	}

	e.Stop(false)
	w.Step(1)
	if rot := e.Placement().Rot; rot != (bitcodec.Vector{0, 30, 0}) {
		t.Fatalf("stop without rotation halted the spin: %v", rot)
	}

	e.Stop(true)
	w.Step(1)
	if rot := e.Placement().Rot; rot != (bitcodec.Vector{0, 30, 0}) {
		t.Fatalf("still spinning: %v", rot)
	}
}
