// Package wire implements FastDIR's frame codec: every message on every
// socket — client traffic, cluster gossip, and master→slave replication
// pushes — begins with the same 8-byte header.
//
//	u8  cmd
//	u8  status
//	u8  flags
//	u8  reserved
//	u32 body_len (big-endian)
//
// All multibyte integers inside bodies are big-endian; strings are
// length-prefixed unless the message defines fixed-width fields (§6).
package wire

import (
	"encoding/binary"
	"fmt"
)

const HeaderSize = 8

// MaxBodyLen bounds a single frame's body. It is a fixed constant, not a
// config setting: the hard ceiling the codec itself enforces so a corrupt
// length field can never trigger an unbounded allocation.
const MaxBodyLen = 64 * 1024 * 1024

// Header is the fixed 8-byte preamble of every frame.
type Header struct {
	Cmd     Command
	Status  uint8
	Flags   uint8
	BodyLen uint32
}

// Pack encodes h into an 8-byte buffer.
func (h Header) Pack() [HeaderSize]byte {
	var buf [HeaderSize]byte
	buf[0] = byte(h.Cmd)
	buf[1] = h.Status
	buf[2] = h.Flags
	buf[3] = 0 // reserved
	binary.BigEndian.PutUint32(buf[4:8], h.BodyLen)
	return buf
}

// Unpack decodes an 8-byte buffer into a Header. Returns an error if
// body_len exceeds MaxBodyLen — a protocol error per §7, not a network one.
func Unpack(buf []byte) (Header, error) {
	if len(buf) != HeaderSize {
		return Header{}, fmt.Errorf("wire: short header: %d bytes", len(buf))
	}
	h := Header{
		Cmd:     Command(buf[0]),
		Status:  buf[1],
		Flags:   buf[2],
		BodyLen: binary.BigEndian.Uint32(buf[4:8]),
	}
	if h.BodyLen > MaxBodyLen {
		return Header{}, fmt.Errorf("wire: body_len %d exceeds max %d", h.BodyLen, MaxBodyLen)
	}
	return h, nil
}

// Frame is a fully decoded message: header plus body bytes.
type Frame struct {
	Header Header
	Body   []byte
}
