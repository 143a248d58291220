package ext

import (
	"fmt"

	"github.com/HimbeerserverDE/extchannel/bitcodec"
)

// SessionPropsSize is the size of the shared session properties blob
const SessionPropsSize = 2048

const (
	propsOffsetBits = 11
	propsLengthBits = 12
)

// SessionProps holds game mode settings shared by every participant
type SessionProps [SessionPropsSize]byte

// Patch overwrites the bytes starting at off.
// Data that does not fit is cut off, the rest of the blob is left alone.
func (sp *SessionProps) Patch(off int, data []byte) (int, error) {
	if off < 0 || off >= SessionPropsSize {
		return 0, fmt.Errorf("%w: %d", ErrOffset, off)
	}

	return copy(sp[off:], data), nil
}

// SessionPropsPatch overwrites part of the session properties
type SessionPropsPatch struct {
	Offset int
	Data   []byte
}

// NewSessionPropsPatch returns a patch covering [off, off+n) of sp
func NewSessionPropsPatch(sp *SessionProps, off, n int) *SessionPropsPatch {
	if off < 0 || off >= SessionPropsSize {
		return &SessionPropsPatch{Offset: off}
	}
	if n > SessionPropsSize-off {
		n = SessionPropsSize - off
	}
	if n < 0 {
		n = 0
	}

	return &SessionPropsPatch{Offset: off, Data: append([]byte(nil), sp[off:off+n]...)}
}

func (p *SessionPropsPatch) Type() Type { return TypeSessionProps }

func (p *SessionPropsPatch) Write(w *bitcodec.Writer) bool {
	if p.Offset < 0 || p.Offset >= SessionPropsSize {
		return false
	}

	data := p.Data
	if len(data) > SessionPropsSize-p.Offset {
		data = data[:SessionPropsSize-p.Offset]
	}

	w.WriteBits(uint32(p.Offset), propsOffsetBits)
	w.WriteBits(uint32(len(data)), propsLengthBits)
	w.WriteBytes(data)
	return true
}

func (p *SessionPropsPatch) Read(r *bitcodec.Reader) {
	p.Offset = int(r.ReadBits(propsOffsetBits))
	n := int(r.ReadBits(propsLengthBits))
	p.Data = r.ReadBytes(n)
}

func (p *SessionPropsPatch) Process(ctx *Context) error {
	if ctx.Props == nil {
		ctx.Props = &SessionProps{}
	}

	_, err := ctx.Props.Patch(p.Offset, p.Data)
	return err
}
