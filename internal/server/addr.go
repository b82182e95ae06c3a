package server

import (
	"encoding/binary"
	"net"
	"strconv"

	"fastdir/internal/cluster"
)

// splitHostPort parses "host:port" into its parts, tolerating a malformed
// address by returning it whole with port 0 rather than erroring — a
// response field, not something worth failing a whole RPC over.
func splitHostPort(addr string) (host string, port uint16) {
	h, p, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return h, 0
	}
	return h, uint16(n)
}

// encodeServerAddr packs {u32_be server_id, char[16] ip_addr, u16_be
// port} for GET_MASTER_RESP / GET_READABLE_SERVER_RESP / GET_SLAVES_RESP,
// matching the server-identification shape used by CLUSTER_STAT_RESP.
func encodeServerAddr(p *cluster.Peer) []byte {
	buf := binary.BigEndian.AppendUint32(nil, uint32(p.ServerID))
	var ipBuf [16]byte
	host, port := splitHostPort(p.ServiceAddr)
	copy(ipBuf[:], host)
	buf = append(buf, ipBuf[:]...)
	buf = binary.BigEndian.AppendUint16(buf, port)
	return buf
}
