/*
Package simworld is a small in-memory simulation that extension
packets can be applied to. The server uses it as its authoritative
world and clients as their local copy.
*/
package simworld

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"math"
	"sort"

	"github.com/HimbeerserverDE/extchannel/bitcodec"
	"github.com/HimbeerserverDE/extchannel/ext"
)

var ErrNoClass = errors.New("empty class name")
var ErrNoLevel = errors.New("empty level name")

// Property ids every entity carries
const (
	PropName uint32 = iota + 1
	PropStrength
	PropSpeed
)

// A World holds every simulated Entity.
// It is not safe for concurrent use.
type World struct {
	level    string
	time     float64
	nextID   uint32
	entities map[uint32]*Entity
}

var _ ext.World = (*World)(nil)

// New returns an empty World on level
func New(level string) *World {
	return &World{
		level:    level,
		nextID:   1,
		entities: make(map[uint32]*Entity),
	}
}

// Level returns the name of the current level
func (w *World) Level() string { return w.level }

// LevelID returns a number identifying the current level
func (w *World) LevelID() uint32 {
	return crc32.ChecksumIEEE([]byte(w.level))
}

// Time returns the simulation time in seconds
func (w *World) Time() float64 { return w.time }

// SetTime moves the clock of a client joining a running level
func (w *World) SetTime(t float64) { w.time = t }

// Step advances the simulation by dt seconds
func (w *World) Step(dt float64) {
	w.time += dt

	for _, e := range w.sorted() {
		if e.deleted || e.parent != nil {
			continue
		}

		for i := range e.pl.Pos {
			e.pl.Pos[i] += e.vel[i] * float32(dt)
		}
		if e.spin != (bitcodec.Vector{}) {
			for i := range e.pl.Rot {
				e.pl.Rot[i] = bitcodec.WrapAngle(e.pl.Rot[i] + e.spin[i]*float32(dt))
			}
		}
	}
}

func (w *World) sorted() []*Entity {
	r := make([]*Entity, 0, len(w.entities))
	for _, e := range w.entities {
		r = append(r, e)
	}

	sort.Slice(r, func(i, j int) bool { return r[i].id < r[j].id })
	return r
}

// Lookup returns the Entity carrying id, deleted ones included
func (w *World) Lookup(id uint32) (ext.Entity, bool) {
	e, ok := w.entities[id]
	if !ok {
		return nil, false
	}
	return e, true
}

// Entities returns every live Entity ordered by id
func (w *World) Entities() []ext.Entity {
	var r []ext.Entity
	for _, e := range w.sorted() {
		if !e.deleted {
			r = append(r, e)
		}
	}
	return r
}

// Fresh reports whether nothing was spawned since the level started.
// Only a fresh World can be rebuilt by a client from the commands that follow.
func (w *World) Fresh() bool { return w.nextID == 1 }

// Count returns the number of live entities
func (w *World) Count() int {
	n := 0
	for _, e := range w.entities {
		if !e.deleted {
			n++
		}
	}
	return n
}

// Spawn creates an Entity of class at pl
func (w *World) Spawn(class string, pl bitcodec.Placement) (ext.Entity, error) {
	if class == "" {
		return nil, ErrNoClass
	}

	e := &Entity{
		world:  w,
		id:     w.nextID,
		class:  class,
		pl:     pl,
		health: 100,
		props: []ext.Property{
			{Name: "Name", ID: PropName, Kind: ext.PropertyString},
			{Name: "Strength", ID: PropStrength, Kind: ext.PropertyNumber, Number: 1},
			{Name: "Speed", ID: PropSpeed, Kind: ext.PropertyNumber, Number: 10},
		},
	}

	w.entities[e.id] = e
	w.nextID++
	return e, nil
}

// Clone creates a copy of src
func (w *World) Clone(src ext.Entity) (ext.Entity, error) {
	orig, ok := src.(*Entity)
	if !ok || orig.world != w {
		return w.Spawn(src.Class(), src.Placement())
	}

	e := *orig
	e.id = w.nextID
	e.events = nil
	e.props = append([]ext.Property(nil), orig.props...)

	w.entities[e.id] = &e
	w.nextID++
	return &e, nil
}

// Damage subtracts health from everything d covers
func (w *World) Damage(d ext.Damage) {
	switch d.Shape {
	case ext.DamageAtPoint:
		if e, ok := d.Target.(*Entity); ok && !e.deleted {
			e.health -= d.Amount
		}
	case ext.DamageInRange:
		for _, e := range w.sorted() {
			if e.deleted {
				continue
			}

			dist := distance(e.pl.Pos, d.Center)
			switch {
			case dist <= d.HotSpot:
				e.health -= d.Amount
			case dist < d.FallOff:
				e.health -= d.Amount * (d.FallOff - dist) / (d.FallOff - d.HotSpot)
			}
		}
	case ext.DamageInBox:
		for _, e := range w.sorted() {
			if !e.deleted && inBox(e.pl.Pos, d.Min, d.Max) {
				e.health -= d.Amount
			}
		}
	}
}

// ChangeLevel clears the World and moves it to another level
func (w *World) ChangeLevel(name string) error {
	if name == "" {
		return ErrNoLevel
	}

	w.level = name
	w.time = 0
	w.nextID = 1
	w.entities = make(map[uint32]*Entity)
	return nil
}

// Checksum digests the state of every live Entity.
// Two worlds that simulated the same commands produce the same value.
func (w *World) Checksum() uint32 {
	h := crc32.NewIEEE()
	var b [4]byte

	put := func(v uint32) {
		binary.BigEndian.PutUint32(b[:], v)
		h.Write(b[:])
	}
	putf := func(f float32) { put(math.Float32bits(f)) }

	h.Write([]byte(w.level))
	for _, e := range w.sorted() {
		if e.deleted {
			continue
		}

		put(e.id)
		h.Write([]byte(e.class))
		for _, f := range e.pl.Pos {
			putf(f)
		}
		for _, f := range e.pl.Rot {
			putf(f)
		}
		putf(e.health)
		for _, f := range e.flags {
			put(f)
		}
		for _, p := range e.props {
			put(math.Float32bits(float32(p.Number)))
			h.Write([]byte(p.String))
		}
	}

	return h.Sum32()
}

func distance(a, b bitcodec.Vector) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return float32(math.Sqrt(sum))
}

func inBox(p, min, max bitcodec.Vector) bool {
	for i := range p {
		lo, hi := min[i], max[i]
		if lo > hi {
			lo, hi = hi, lo
		}
		if p[i] < lo || p[i] > hi {
			return false
		}
	}
	return true
}
