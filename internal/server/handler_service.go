package server

import (
	"encoding/binary"

	"fastdir/internal/binlog"
	"fastdir/internal/dentry"
	"fastdir/internal/fdirerr"
	"fastdir/internal/wire"
)

// decodeDentryInfo reads the wire's dentry-info fields: {u8 ns_len, u16_be
// path_len, ns_bytes, path_bytes}, enforcing NAME_MAX/PATH_MAX boundary
// checks that fail with EINVAL when exceeded.
func decodeDentryInfo(buf []byte) (namespace, path string, rest []byte, errno fdirerr.Errno) {
	const nameMax = 255
	const pathMax = 4096

	if len(buf) < 3 {
		return "", "", nil, fdirerr.EINVAL
	}
	nsLen := int(buf[0])
	pathLen := int(binary.BigEndian.Uint16(buf[1:3]))
	buf = buf[3:]

	if nsLen == 0 || nsLen > nameMax || pathLen == 0 || pathLen > pathMax {
		return "", "", nil, fdirerr.EINVAL
	}
	if len(buf) < nsLen+pathLen {
		return "", "", nil, fdirerr.EINVAL
	}
	namespace = string(buf[:nsLen])
	path = string(buf[nsLen : nsLen+pathLen])
	return namespace, path, buf[nsLen+pathLen:], fdirerr.OK
}

// handleCreateDentry: request is dentry-info followed by {u32_be
// data_len, data}. Only the master accepts this command.
func (s *Server) handleCreateDentry(body []byte) ([]byte, wire.Command, uint8) {
	if s.roster.Master() == nil || s.roster.Master().ServerID != s.roster.Myself().ServerID {
		return nil, wire.CmdAck, uint8(fdirerr.ENOTMAST)
	}

	namespace, path, rest, errno := decodeDentryInfo(body)
	if errno != fdirerr.OK {
		return nil, wire.CmdAck, uint8(errno)
	}
	if _, exists := s.tree.Get(namespace, path); exists {
		return nil, wire.CmdAck, uint8(fdirerr.EEXIST)
	}

	var data []byte
	if len(rest) >= 4 {
		dataLen := int(binary.BigEndian.Uint32(rest[0:4]))
		if len(rest) >= 4+dataLen {
			data = rest[4 : 4+dataLen]
		}
	}

	if _, err := s.producer.Produce(binlog.OpCreateDentry, namespace, path, data); err != nil {
		s.log.Errorw("create dentry: produce failed", "ns", namespace, "path", path, "err", err)
		return nil, wire.CmdAck, uint8(fdirerr.EIO)
	}
	return nil, wire.CmdAck, uint8(fdirerr.OK)
}

// handleRemoveDentry: request is dentry-info only.
func (s *Server) handleRemoveDentry(body []byte) ([]byte, wire.Command, uint8) {
	if s.roster.Master() == nil || s.roster.Master().ServerID != s.roster.Myself().ServerID {
		return nil, wire.CmdAck, uint8(fdirerr.ENOTMAST)
	}

	namespace, path, _, errno := decodeDentryInfo(body)
	if errno != fdirerr.OK {
		return nil, wire.CmdAck, uint8(errno)
	}

	if _, ok := s.tree.Get(namespace, path); !ok {
		return nil, wire.CmdAck, uint8(fdirerr.ENOENT)
	}

	if _, err := s.producer.Produce(binlog.OpRemoveDentry, namespace, path, nil); err != nil {
		s.log.Errorw("remove dentry: produce failed", "ns", namespace, "path", path, "err", err)
		return nil, wire.CmdAck, uint8(fdirerr.EIO)
	}
	return nil, wire.CmdAck, uint8(fdirerr.OK)
}

func encodeDentryInfo(namespace, path string) []byte {
	buf := make([]byte, 0, 3+len(namespace)+len(path))
	buf = append(buf, byte(len(namespace)))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(path)))
	buf = append(buf, namespace...)
	buf = append(buf, path...)
	return buf
}

func encodeListPage(page dentry.Page) []byte {
	var buf []byte
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(page.Entries)))
	if page.IsLast {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, page.Token[:]...)
	for _, c := range page.Entries {
		buf = append(buf, byte(len(c.Name)))
		buf = append(buf, c.Name...)
	}
	return buf
}

func (s *Server) handleListFirst(body []byte) ([]byte, wire.Command, uint8) {
	namespace, path, _, errno := decodeDentryInfo(body)
	if errno != fdirerr.OK {
		return nil, wire.CmdListDentryFirstResp, uint8(errno)
	}
	page, err := s.cursors.First(s.tree, namespace, path)
	if err != nil {
		s.log.Errorw("list first failed", "ns", namespace, "path", path, "err", err)
		return nil, wire.CmdListDentryFirstResp, uint8(fdirerr.EIO)
	}
	return encodeListPage(page), wire.CmdListDentryFirstResp, uint8(fdirerr.OK)
}

// handleListNext: request is {u8[16] token, u32_be offset}; offset is
// accepted on the wire but never read, since the server tracks its own
// cursor offset authoritatively.
func (s *Server) handleListNext(body []byte) ([]byte, wire.Command, uint8) {
	if len(body) < 16 {
		return nil, wire.CmdListDentryFirstResp, uint8(fdirerr.EINVAL)
	}
	var token dentry.ListToken
	copy(token[:], body[0:16])

	page, err := s.cursors.Next(token)
	if err != nil {
		if fe, ok := err.(*fdirerr.Error); ok {
			return []byte(fe.Message), wire.CmdListDentryFirstResp, uint8(fe.Code)
		}
		return nil, wire.CmdListDentryFirstResp, uint8(fdirerr.EIO)
	}
	return encodeListPage(page), wire.CmdListDentryFirstResp, uint8(fdirerr.OK)
}

func (s *Server) handleServiceStat() ([]byte, wire.Command, uint8) {
	buf := binary.BigEndian.AppendUint32(nil, uint32(s.tree.Count()))
	buf = binary.BigEndian.AppendUint64(buf, s.roster.Myself().DataVersion())
	return buf, wire.CmdServiceStatResp, uint8(fdirerr.OK)
}

func (s *Server) handleClusterStat() ([]byte, wire.Command, uint8) {
	peers := s.roster.Peers()
	buf := binary.BigEndian.AppendUint32(nil, uint32(len(peers)))
	for _, p := range peers {
		buf = binary.BigEndian.AppendUint32(buf, uint32(p.ServerID))

		var ipBuf [16]byte
		ip, port := splitHostPort(p.ServiceAddr)
		copy(ipBuf[:], ip)
		buf = append(buf, ipBuf[:]...)
		buf = binary.BigEndian.AppendUint16(buf, port)

		if p.IsMaster() {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = append(buf, byte(p.Status()))
	}
	return buf, wire.CmdClusterStatResp, uint8(fdirerr.OK)
}

func (s *Server) handleGetMaster() ([]byte, wire.Command, uint8) {
	master := s.roster.Master()
	if master == nil {
		return nil, wire.CmdGetMasterResp, uint8(fdirerr.ENOENT)
	}
	return encodeServerAddr(master), wire.CmdGetMasterResp, uint8(fdirerr.OK)
}

// handleGetReadableServer answers with any peer this node considers fit
// to serve reads: the master, or any active slave. A plain round-robin
// isn't meaningful server-side (the client router does that across
// calls), so this just prefers an active slave over the master to spread
// read load, falling back to the master if no slave is active yet.
func (s *Server) handleGetReadableServer() ([]byte, wire.Command, uint8) {
	if slaves := s.roster.ActiveSlaves(); len(slaves) > 0 {
		return encodeServerAddr(slaves[0]), wire.CmdGetReadableServerResp, uint8(fdirerr.OK)
	}
	master := s.roster.Master()
	if master == nil {
		return nil, wire.CmdGetReadableServerResp, uint8(fdirerr.ENOENT)
	}
	return encodeServerAddr(master), wire.CmdGetReadableServerResp, uint8(fdirerr.OK)
}

func (s *Server) handleGetSlaves() ([]byte, wire.Command, uint8) {
	slaves := s.roster.ActiveSlaves()
	buf := binary.BigEndian.AppendUint32(nil, uint32(len(slaves)))
	for _, p := range slaves {
		buf = append(buf, encodeServerAddr(p)...)
	}
	return buf, wire.CmdGetSlavesResp, uint8(fdirerr.OK)
}
