// Package sdk is FastDIR's Go client library: Create/Remove/List operations
// over the binary wire protocol, routed through internal/clientrouter with
// per-call failover.
package sdk

import (
	"encoding/binary"
	"fmt"
	"time"

	"fastdir/internal/clientrouter"
	"fastdir/internal/fdirerr"
	"fastdir/internal/wire"

	"go.uber.org/zap"
)

// Client is a thin wrapper around a Router exposing FastDIR's operations.
type Client struct {
	router *clientrouter.Router
}

func New(servers []clientrouter.ServerSpec, connectTimeout, networkTimeout time.Duration, log *zap.SugaredLogger) *Client {
	return &Client{router: clientrouter.New(servers, connectTimeout, networkTimeout, log)}
}

func encodeDentryInfo(namespace, path string) ([]byte, error) {
	if namespace == "" || len(namespace) > 255 {
		return nil, fdirerr.New(fdirerr.EINVAL, "namespace length out of bounds")
	}
	if path == "" || len(path) > 4096 {
		return nil, fdirerr.New(fdirerr.EINVAL, "path length out of bounds")
	}
	buf := make([]byte, 0, 3+len(namespace)+len(path))
	buf = append(buf, byte(len(namespace)))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(path)))
	buf = append(buf, namespace...)
	buf = append(buf, path...)
	return buf, nil
}

// Create issues CREATE_DENTRY against the current master, failing over to
// a freshly-resolved master once if the cached connection turns out to be
// stale.
func (c *Client) Create(namespace, path string, data []byte) error {
	body, err := encodeDentryInfo(namespace, path)
	if err != nil {
		return err
	}
	body = binary.BigEndian.AppendUint32(body, uint32(len(data)))
	body = append(body, data...)

	return c.callOnMaster(wire.CmdCreateDentry, body, wire.CmdAck)
}

// Remove issues REMOVE_DENTRY against the current master.
func (c *Client) Remove(namespace, path string) error {
	body, err := encodeDentryInfo(namespace, path)
	if err != nil {
		return err
	}
	return c.callOnMaster(wire.CmdRemoveDentry, body, wire.CmdAck)
}

func (c *Client) callOnMaster(cmd wire.Command, body []byte, wantResp wire.Command) error {
	conn, _, err := c.router.GetMasterConnection()
	if err != nil {
		return err
	}
	frame, err := conn.Call(cmd, body, wantResp)
	if err != nil {
		c.router.InvalidateMaster()
		conn, _, err2 := c.router.GetMasterConnection()
		if err2 != nil {
			return fmt.Errorf("sdk: master unreachable: %w", err)
		}
		frame, err = conn.Call(cmd, body, wantResp)
		if err != nil {
			return err
		}
	}
	if frame.Header.Status == uint8(fdirerr.ENOTMAST) {
		c.router.InvalidateMaster()
		return fdirerr.New(fdirerr.ENOTMAST, "stale master, retry")
	}
	if frame.Header.Status != uint8(fdirerr.OK) {
		return fdirerr.New(fdirerr.Errno(frame.Header.Status), string(frame.Body))
	}
	return nil
}

// Entry is one name returned by a listing.
type Entry struct {
	Name string
}

// ListResult is the accumulated outcome of a full paged listing.
type ListResult struct {
	Names []string
}

// List performs a complete LIST_DENTRY_FIRST_REQ / LIST_DENTRY_NEXT_REQ*
// round, returning every name found. Reads are routed to any readable
// peer, not necessarily the master.
func (c *Client) List(namespace, path string) (ListResult, error) {
	body, err := encodeDentryInfo(namespace, path)
	if err != nil {
		return ListResult{}, err
	}

	conn, _, err := c.router.GetReadableConnection()
	if err != nil {
		return ListResult{}, err
	}

	frame, err := conn.Call(wire.CmdListDentryFirstReq, body, wire.CmdListDentryFirstResp)
	if err != nil {
		return ListResult{}, err
	}
	if frame.Header.Status != uint8(fdirerr.OK) {
		return ListResult{}, fdirerr.New(fdirerr.Errno(frame.Header.Status), string(frame.Body))
	}

	names, isLast, token, err := decodeListPage(frame.Body)
	if err != nil {
		return ListResult{}, err
	}
	result := ListResult{Names: names}

	for !isLast {
		nextBody := append([]byte{}, token[:]...)
		nextBody = binary.BigEndian.AppendUint32(nextBody, uint32(len(result.Names)))

		frame, err := conn.Call(wire.CmdListDentryNextReq, nextBody, wire.CmdListDentryFirstResp)
		if err != nil {
			return ListResult{}, err
		}
		if frame.Header.Status != uint8(fdirerr.OK) {
			return ListResult{}, fdirerr.New(fdirerr.Errno(frame.Header.Status), string(frame.Body))
		}
		var more []string
		more, isLast, token, err = decodeListPage(frame.Body)
		if err != nil {
			return ListResult{}, err
		}
		result.Names = append(result.Names, more...)
	}

	return result, nil
}

func decodeListPage(body []byte) (names []string, isLast bool, token [16]byte, err error) {
	if len(body) < 21 {
		return nil, false, token, fmt.Errorf("sdk: short list response")
	}
	count := binary.BigEndian.Uint32(body[0:4])
	isLast = body[4] != 0
	copy(token[:], body[5:21])
	rest := body[21:]

	for i := uint32(0); i < count; i++ {
		if len(rest) < 1 {
			return nil, false, token, fmt.Errorf("sdk: truncated list entry")
		}
		n := int(rest[0])
		rest = rest[1:]
		if len(rest) < n {
			return nil, false, token, fmt.Errorf("sdk: truncated list entry name")
		}
		names = append(names, string(rest[:n]))
		rest = rest[n:]
	}
	return names, isLast, token, nil
}
