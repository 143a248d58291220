package extchannel

import (
	"bytes"
	"io"

	"github.com/google/uuid"
)

// Welcome is the server's answer to a hello
type Welcome struct {
	Slot     int
	TickRate int
	Level    string
	Time     float64
}

func helloMsg(name string, guid uuid.UUID) []byte {
	w := &bytes.Buffer{}
	WriteUint8(w, ToServerHello)
	WriteBytes16(w, []byte(name))
	w.Write(guid[:])
	return w.Bytes()
}

func readHello(r *bytes.Reader) (string, uuid.UUID, error) {
	name := ReadBytes16(r)
	if name == nil {
		return "", uuid.Nil, io.ErrUnexpectedEOF
	}

	var guid uuid.UUID
	if _, err := io.ReadFull(r, guid[:]); err != nil {
		return "", uuid.Nil, err
	}
	return string(name), guid, nil
}

func welcomeMsg(wc Welcome) []byte {
	w := &bytes.Buffer{}
	WriteUint8(w, ToClientHello)
	WriteUint8(w, uint8(wc.Slot))
	WriteUint16(w, uint16(wc.TickRate))
	WriteBytes16(w, []byte(wc.Level))
	WriteFloat64(w, wc.Time)
	return w.Bytes()
}

func readWelcome(r *bytes.Reader) Welcome {
	var wc Welcome
	wc.Slot = int(ReadUint8(r))
	wc.TickRate = int(ReadUint16(r))
	wc.Level = string(ReadBytes16(r))
	wc.Time = ReadFloat64(r)
	return wc
}

// chatMsg carries plain text or an extension packet.
// tick is the simulation time the server applied an extension packet at.
func chatMsg(from int, tick float64, data []byte) []byte {
	w := &bytes.Buffer{}
	WriteUint8(w, ToClientChat)
	WriteUint8(w, uint8(from))
	WriteFloat64(w, tick)
	WriteBytes16(w, data)
	return w.Bytes()
}

func toServerChatMsg(data []byte) []byte {
	w := &bytes.Buffer{}
	WriteUint8(w, ToServerChat)
	WriteBytes16(w, data)
	return w.Bytes()
}

func identityMsg(id Identity) []byte {
	w := &bytes.Buffer{}
	WriteUint8(w, ToClientIdentity)
	WriteUint8(w, uint8(id.Slot))
	WriteUint8(w, uint8(id.PlayerSlot))
	WriteBytes16(w, []byte(id.Name))
	w.Write(id.GUID[:])
	return w.Bytes()
}

func readIdentity(r *bytes.Reader) Identity {
	var id Identity
	id.Slot = int(ReadUint8(r))
	id.PlayerSlot = int(ReadUint8(r))
	id.Name = string(ReadBytes16(r))
	r.Read(id.GUID[:])
	return id
}

func leaveMsg(slot int) []byte {
	return []byte{ToClientLeave, uint8(slot)}
}

func pauseMsg(paused bool, reason string) []byte {
	w := &bytes.Buffer{}
	WriteUint8(w, ToClientPause)
	if paused {
		WriteUint8(w, 1)
	} else {
		WriteUint8(w, 0)
	}
	WriteBytes16(w, []byte(reason))
	return w.Bytes()
}

func syncRequestMsg(tick float64, seq uint32) []byte {
	w := &bytes.Buffer{}
	WriteUint8(w, ToClientSyncRequest)
	WriteFloat64(w, tick)
	WriteUint32(w, seq)
	return w.Bytes()
}

func syncCheckMsg(c SyncCheck) []byte {
	w := &bytes.Buffer{}
	WriteUint8(w, ToServerSyncCheck)
	WriteFloat64(w, c.Tick)
	WriteUint32(w, c.Sequence)
	WriteUint32(w, c.CRC)
	WriteUint32(w, c.LevelID)
	return w.Bytes()
}

func readSyncCheck(r *bytes.Reader) SyncCheck {
	var c SyncCheck
	c.Tick = ReadFloat64(r)
	c.Sequence = ReadUint32(r)
	c.CRC = ReadUint32(r)
	c.LevelID = ReadUint32(r)
	return c
}

// srpMsg packs any of the SRP messages, they are all
// a kind followed by byte strings
func srpMsg(kind uint8, fields ...[]byte) []byte {
	w := &bytes.Buffer{}
	WriteUint8(w, kind)
	for _, f := range fields {
		WriteBytes16(w, f)
	}
	return w.Bytes()
}
