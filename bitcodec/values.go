package bitcodec

import (
	"math"
	"strings"
)

// ZeroEpsilon is the magnitude below which floats and angles
// are sent as a single cleared bit
const ZeroEpsilon = 0.001

// AngleSteps is the largest quantized angle value
const AngleSteps = 32767

// AngleStep is the size of one angle quantization step in degrees
const AngleStep = 360.0 / AngleSteps

// WriteVarUint writes v with a unary width prefix.
// 0 and 1 cost one and two bits, everything up to 255 fits in 13.
func (w *Writer) WriteVarUint(v uint32) {
	switch {
	case v == 0:
		w.WriteBits(1, 1)
	case v == 1:
		w.WriteBits(1, 2)
	case v < 4:
		w.WriteBits(1, 3)
		w.WriteBits(v-2, 1)
	case v < 16:
		w.WriteBits(1, 4)
		w.WriteBits(v, 4)
	case v < 256:
		w.WriteBits(1, 5)
		w.WriteBits(v, 8)
	case v < 65536:
		w.WriteBits(1, 6)
		w.WriteBits(v, 16)
	default:
		w.WriteBits(0, 6)
		w.WriteBits(v, 32)
	}
}

// ReadVarUint reads a value written by WriteVarUint
func (r *Reader) ReadVarUint() uint32 {
	zeros := 0
	for zeros < 6 && !r.ReadBool() {
		if r.err != nil {
			return 0
		}
		zeros++
	}

	switch zeros {
	case 0:
		return 0
	case 1:
		return 1
	case 2:
		return 2 + r.ReadBits(1)
	case 3:
		return r.ReadBits(4)
	case 4:
		return r.ReadBits(8)
	case 5:
		return r.ReadBits(16)
	default:
		return r.ReadBits(32)
	}
}

// WriteFloat writes a presence bit and, for non-zero values, all 32 bits
func (w *Writer) WriteFloat(f float32) {
	if math.Abs(float64(f)) < ZeroEpsilon {
		w.WriteBool(false)
		return
	}

	w.WriteBool(true)
	w.WriteBits(math.Float32bits(f), 32)
}

// ReadFloat reads a value written by WriteFloat
func (r *Reader) ReadFloat() float32 {
	if !r.ReadBool() {
		return 0
	}

	return math.Float32frombits(r.ReadBits(32))
}

// WrapAngle maps a to [0, 360)
func WrapAngle(a float32) float32 {
	w := math.Mod(float64(a), 360)
	if w < 0 {
		w += 360
	}

	f := float32(w)
	if f >= 360 {
		f = 0
	}

	return f
}

// WriteAngle writes a wrapped angle quantized to 15 bits
func (w *Writer) WriteAngle(a float32) {
	a = WrapAngle(a)
	// NaN fails every comparison and is sent as zero
	if !(a >= ZeroEpsilon) {
		w.WriteBool(false)
		return
	}

	q := math.Round(float64(a) * AngleSteps / 360)
	if q < 0 {
		q = 0
	} else if q > AngleSteps {
		q = AngleSteps
	}

	w.WriteBool(true)
	w.WriteBits(uint32(q), 15)
}

// ReadAngle reads a value written by WriteAngle
func (r *Reader) ReadAngle() float32 {
	if !r.ReadBool() {
		return 0
	}

	return float32(float64(r.ReadBits(15)) * 360 / AngleSteps)
}

// pathChars holds the symbols allowed in class and level paths.
// Index 0 doubles as the replacement for anything else.
const pathChars = "_ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 -./\\:()[]!#$%&'+,;=@^~|"

// PathCharCount is the number of encodable path symbols
const PathCharCount = len(pathChars)

// WritePathChar writes c in 6 bits after folding it to upper case
func (w *Writer) WritePathChar(c byte) {
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}

	i := strings.IndexByte(pathChars, c)
	if i < 0 {
		i = 0
	}

	w.WriteBits(uint32(i), 6)
}

// ReadPathChar reads a symbol written by WritePathChar
func (r *Reader) ReadPathChar() byte {
	i := int(r.ReadBits(6))
	if i >= PathCharCount {
		i = 0
	}

	return pathChars[i]
}

// WritePath writes the length of s followed by its path characters
func (w *Writer) WritePath(s string) {
	w.WriteVarUint(uint32(len(s)))
	for i := 0; i < len(s); i++ {
		w.WritePathChar(s[i])
	}
}

// ReadPath reads a string written by WritePath
func (r *Reader) ReadPath() string {
	n := int(r.ReadVarUint())
	if n*6 > r.Remaining() {
		r.fail()
		return ""
	}

	b := make([]byte, n)
	for i := range b {
		b[i] = r.ReadPathChar()
	}

	return string(b)
}

// MaxEntityRef is the 31-bit value that means "no entity"
const MaxEntityRef = 0x7FFFFFFF

// WriteEntityRef writes id in 31 bits, clamping it to MaxEntityRef
func (w *Writer) WriteEntityRef(id uint32) {
	if id > MaxEntityRef {
		id = MaxEntityRef
	}

	w.WriteBits(id, 31)
}

// ReadEntityRef reads a 31-bit reference
func (r *Reader) ReadEntityRef() uint32 {
	return r.ReadBits(31)
}

// A Vector is a position, direction or velocity
type Vector [3]float32

// A Placement is a position plus heading, pitch and banking in degrees
type Placement struct {
	Pos Vector
	Rot Vector
}

// WriteVector writes three compressed floats
func (w *Writer) WriteVector(v Vector) {
	for _, f := range v {
		w.WriteFloat(f)
	}
}

// ReadVector reads a Vector written by WriteVector
func (r *Reader) ReadVector() Vector {
	var v Vector
	for i := range v {
		v[i] = r.ReadFloat()
	}
	return v
}

// WriteAngles writes three compressed angles
func (w *Writer) WriteAngles(v Vector) {
	for _, a := range v {
		w.WriteAngle(a)
	}
}

// ReadAngles reads three angles written by WriteAngles
func (r *Reader) ReadAngles() Vector {
	var v Vector
	for i := range v {
		v[i] = r.ReadAngle()
	}
	return v
}

// WritePlacement writes the position followed by the orientation
func (w *Writer) WritePlacement(pl Placement) {
	w.WriteVector(pl.Pos)
	w.WriteAngles(pl.Rot)
}

// ReadPlacement reads a Placement written by WritePlacement
func (r *Reader) ReadPlacement() Placement {
	return Placement{Pos: r.ReadVector(), Rot: r.ReadAngles()}
}
