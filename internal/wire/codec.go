package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// WriteFrame packs header+body and writes them as a single deadline-bounded
// call. The caller owns setting up conn; WriteFrame only manages the
// write deadline for this one frame.
func WriteFrame(conn net.Conn, timeout time.Duration, cmd Command, status uint8, body []byte) error {
	h := Header{Cmd: cmd, Status: status, BodyLen: uint32(len(body))}
	hdr := h.Pack()

	if timeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return err
		}
	}
	if _, err := conn.Write(hdr[:]); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := conn.Write(body); err != nil {
			return err
		}
	}
	return nil
}

// ReadFrame reads one complete frame (header then body) off conn, bounded
// by timeout for each of the two reads.
func ReadFrame(conn net.Conn, timeout time.Duration) (Frame, error) {
	var hdrBuf [HeaderSize]byte

	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return Frame{}, err
		}
	}
	if _, err := io.ReadFull(conn, hdrBuf[:]); err != nil {
		return Frame{}, err
	}

	h, err := Unpack(hdrBuf[:])
	if err != nil {
		return Frame{}, err
	}

	var body []byte
	if h.BodyLen > 0 {
		body = make([]byte, h.BodyLen)
		if timeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
				return Frame{}, err
			}
		}
		if _, err := io.ReadFull(conn, body); err != nil {
			return Frame{}, err
		}
	}

	return Frame{Header: h, Body: body}, nil
}

// Call is the high-level request/response primitive every component uses:
// send one frame, read exactly one response frame, and fail loudly if the
// response is not the expected command. A non-zero status byte is not an
// error here: the frame is returned and the caller inspects its status.
//
// This is the Go analogue of fdir_send_and_recv_response in the original
// C client: one function that every RPC-shaped call goes through so
// mismatched commands and lengths are caught in one place.
func Call(conn net.Conn, timeout time.Duration, reqCmd Command, reqBody []byte, wantResp Command) (Frame, error) {
	if err := WriteFrame(conn, timeout, reqCmd, 0, reqBody); err != nil {
		return Frame{}, err
	}
	resp, err := ReadFrame(conn, timeout)
	if err != nil {
		return Frame{}, err
	}
	if resp.Header.Cmd != wantResp {
		return resp, fmt.Errorf("wire: expected response %s, got %s", wantResp, resp.Header.Cmd)
	}
	return resp, nil
}

// ─── body primitives ───────────────────────────────────────────────────────

// PutString appends a u16-be length-prefixed string to buf.
func PutString(buf []byte, s string) []byte {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, s...)
}

// GetString reads a u16-be length-prefixed string starting at buf[0:].
// Returns the string and the remaining unread slice.
func GetString(buf []byte) (string, []byte, error) {
	if len(buf) < 2 {
		return "", nil, fmt.Errorf("wire: short buffer for string length")
	}
	n := int(binary.BigEndian.Uint16(buf[0:2]))
	buf = buf[2:]
	if len(buf) < n {
		return "", nil, fmt.Errorf("wire: short buffer for string body")
	}
	return string(buf[:n]), buf[n:], nil
}
