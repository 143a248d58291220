package extchannel

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
)

func ReadUint8(r io.Reader) uint8 {
	b := make([]byte, 1)
	io.ReadFull(r, b)
	return b[0]
}

func WriteUint8(w io.Writer, v uint8) {
	w.Write([]byte{v})
}

func ReadUint16(r io.Reader) uint16 {
	b := make([]byte, 2)
	io.ReadFull(r, b)
	return binary.BigEndian.Uint16(b)
}

func WriteUint16(w io.Writer, v uint16) {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	w.Write(b)
}

func ReadUint32(r io.Reader) uint32 {
	b := make([]byte, 4)
	io.ReadFull(r, b)
	return binary.BigEndian.Uint32(b)
}

func WriteUint32(w io.Writer, v uint32) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	w.Write(b)
}

func ReadFloat64(r io.Reader) float64 {
	b := make([]byte, 8)
	io.ReadFull(r, b)
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

func WriteFloat64(w io.Writer, v float64) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
	w.Write(b)
}

// ReadBytes16 reads a byte string with a 16-bit length prefix.
// It returns nil if the string is cut off.
func ReadBytes16(r *bytes.Reader) []byte {
	n := int(ReadUint16(r))
	if n > r.Len() {
		r.Seek(0, io.SeekEnd)
		return nil
	}

	b := make([]byte, n)
	r.Read(b)
	return b
}

// WriteBytes16 writes b with a 16-bit length prefix,
// anything past 65535 bytes is dropped
func WriteBytes16(w io.Writer, b []byte) {
	if len(b) > math.MaxUint16 {
		b = b[:math.MaxUint16]
	}

	WriteUint16(w, uint16(len(b)))
	w.Write(b)
}
