package ext

import (
	"errors"
	"strings"
)

// ClassOutOfBand is the class index announcing that the class name
// follows as a path string. It is never a dictionary entry.
const ClassOutOfBand = 255

// MaxClasses is the number of usable dictionary slots
const MaxClasses = ClassOutOfBand

var ErrTooManyClasses = errors.New("class dictionary holds at most 255 entries")

// defaultClasses is append-only. New classes go into empty
// slots or at the end, never in place of an existing entry.
var defaultClasses = []string{
	`Classes\Player.ecl`,
	`Classes\PlayerMarker.ecl`,
	`Classes\PlayerWeapons.ecl`,
	`Classes\Light.ecl`,
	`Classes\Marker.ecl`,
	`Classes\Items\Health.ecl`,
	`Classes\Items\Armor.ecl`,
	`Classes\Items\Ammo.ecl`,
	`Classes\Items\Weapon.ecl`,
	`Classes\Items\Key.ecl`,
	`Classes\Items\PowerUp.ecl`,
	"",
	"",
	`Classes\Enemies\Headman.ecl`,
	`Classes\Enemies\Walker.ecl`,
	`Classes\Enemies\Werebull.ecl`,
	`Classes\Enemies\Gizmo.ecl`,
	`Classes\Enemies\Boneman.ecl`,
	`Classes\Enemies\Scorpman.ecl`,
	`Classes\Enemies\Fish.ecl`,
	"",
	`Classes\Projectile.ecl`,
	`Classes\BasicEffect.ecl`,
	`Classes\Debris.ecl`,
	`Classes\SoundHolder.ecl`,
	`Classes\ModelHolder2.ecl`,
	`Classes\Trigger.ecl`,
	`Classes\MovingBrush.ecl`,
	`Classes\Switch.ecl`,
	`Classes\Teleport.ecl`,
	`Classes\EnemySpawner.ecl`,
	`Classes\MusicHolder.ecl`,
}

// A ClassDict maps entity classes to one byte indices.
// Lookups by name ignore case.
type ClassDict struct {
	names []string
	index map[string]int
}

// NewClassDict builds a dictionary, empty names mark reserved slots
func NewClassDict(names []string) (*ClassDict, error) {
	if len(names) > MaxClasses {
		return nil, ErrTooManyClasses
	}

	d := &ClassDict{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
	}

	for i, name := range names {
		if name == "" {
			continue
		}

		key := strings.ToUpper(name)
		if _, ok := d.index[key]; !ok {
			d.index[key] = i
		}
	}

	return d, nil
}

// DefaultClasses returns the built-in dictionary
func DefaultClasses() *ClassDict {
	d, _ := NewClassDict(defaultClasses)
	return d
}

// Index returns the slot holding name
func (d *ClassDict) Index(name string) (int, bool) {
	if d == nil {
		return 0, false
	}

	i, ok := d.index[strings.ToUpper(name)]
	return i, ok
}

// Name returns the class at slot i
func (d *ClassDict) Name(i int) (string, bool) {
	if d == nil || i < 0 || i >= len(d.names) || d.names[i] == "" {
		return "", false
	}

	return d.names[i], true
}

// Len returns the number of slots including reserved ones
func (d *ClassDict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.names)
}
