/*
Package bitcodec implements the bit-packed value codecs used by
extension packets. Bits are written most significant first.
*/
package bitcodec

import "errors"

// ErrShortBuffer is reported by a Reader that ran past the end of its data
var ErrShortBuffer = errors.New("bitcodec: read past end of buffer")

// A Writer appends bits to an in-memory buffer
type Writer struct {
	buf  []byte
	bits int
}

// NewWriter returns an empty Writer
func NewWriter() *Writer {
	return &Writer{}
}

// WriteBits appends the n low bits of v, n must be in [0, 32]
func (w *Writer) WriteBits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		if w.bits%8 == 0 {
			w.buf = append(w.buf, 0)
		}

		if v&(1<<uint(i)) != 0 {
			w.buf[len(w.buf)-1] |= 0x80 >> uint(w.bits%8)
		}

		w.bits++
	}
}

// WriteBool appends a single bit
func (w *Writer) WriteBool(b bool) {
	if b {
		w.WriteBits(1, 1)
	} else {
		w.WriteBits(0, 1)
	}
}

// WriteByte appends 8 bits
func (w *Writer) WriteByte(b byte) error {
	w.WriteBits(uint32(b), 8)
	return nil
}

// WriteBytes appends every byte of p
func (w *Writer) WriteBytes(p []byte) {
	for _, b := range p {
		w.WriteBits(uint32(b), 8)
	}
}

// Len reports how many bits have been written
func (w *Writer) Len() int { return w.bits }

// Bytes returns the written data, the last byte is zero-padded
func (w *Writer) Bytes() []byte { return w.buf }

// A Reader consumes bits from a byte slice.
// Once a read runs past the end every following read
// returns zero values and Err reports ErrShortBuffer.
type Reader struct {
	buf []byte
	pos int
	err error
}

// NewReader returns a Reader positioned at the start of b
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Err returns the first error encountered
func (r *Reader) Err() error { return r.err }

// Remaining reports how many unread bits are left
func (r *Reader) Remaining() int {
	return len(r.buf)*8 - r.pos
}

// Rewind moves the cursor back to the start and clears the error
func (r *Reader) Rewind() {
	r.pos = 0
	r.err = nil
}

// ReadBits reads n bits, n must be in [0, 32]
func (r *Reader) ReadBits(n int) uint32 {
	if r.err != nil {
		return 0
	}

	if n > r.Remaining() {
		r.fail()
		return 0
	}

	var v uint32
	for i := 0; i < n; i++ {
		bit := r.buf[r.pos/8] >> uint(7-r.pos%8) & 1
		v = v<<1 | uint32(bit)
		r.pos++
	}

	return v
}

func (r *Reader) fail() {
	if r.err == nil {
		r.err = ErrShortBuffer
	}
	r.pos = len(r.buf) * 8
}

// ReadBool reads a single bit
func (r *Reader) ReadBool() bool {
	return r.ReadBits(1) == 1
}

// ReadByte reads 8 bits
func (r *Reader) ReadByte() (byte, error) {
	b := byte(r.ReadBits(8))
	return b, r.err
}

// ReadBytes reads n bytes
func (r *Reader) ReadBytes(n int) []byte {
	if r.err != nil || n < 0 || n*8 > r.Remaining() {
		r.fail()
		return nil
	}

	p := make([]byte, n)
	for i := range p {
		p[i] = byte(r.ReadBits(8))
	}

	return p
}

// Rest returns the unread bytes starting at the next byte boundary
func (r *Reader) Rest() []byte {
	start := (r.pos + 7) / 8
	if start >= len(r.buf) {
		return nil
	}

	return r.buf[start:]
}
