package server

import (
	"crypto/rand"
	"encoding/binary"

	"fastdir/internal/fdirerr"
	"fastdir/internal/wire"
)

func (s *Server) handleGetServerStatus() ([]byte, wire.Command, uint8) {
	return s.election.EncodeLocalStatus(), wire.CmdGetServerStatusResp, uint8(fdirerr.OK)
}

// handleJoinMaster: body is {u32_be cluster_id, u32_be server_id, [16]byte
// config_sign}. Accepts iff cluster_id matches and the caller's config_sign
// agrees with ours (§3: a mismatch rejects the peer's join). On success the
// response body is a freshly generated 16-byte replica_key, also stored on
// the slave's Peer record here; the master carries it in every
// PUSH_BINLOG_REQ to that slave, which checks it against the key it kept.
func (s *Server) handleJoinMaster(body []byte) ([]byte, wire.Command, uint8) {
	if s.roster.Master() == nil || s.roster.Master().ServerID != s.roster.Myself().ServerID {
		return nil, wire.CmdJoinMaster, uint8(fdirerr.ENOTMAST)
	}
	if len(body) < 24 {
		return nil, wire.CmdJoinMaster, uint8(fdirerr.EINVAL)
	}
	clusterID := int(binary.BigEndian.Uint32(body[0:4]))
	serverID := int(binary.BigEndian.Uint32(body[4:8]))
	var configSign [16]byte
	copy(configSign[:], body[8:24])

	if clusterID != s.roster.ClusterID() {
		return nil, wire.CmdJoinMaster, uint8(fdirerr.EINVAL)
	}
	if configSign != s.roster.ConfigSign() {
		s.log.Warnw("cluster: join rejected, config_sign mismatch", "server_id", serverID)
		return nil, wire.CmdJoinMaster, uint8(fdirerr.EINVAL)
	}
	peer, ok := s.roster.GetPeerByID(serverID)
	if !ok {
		return nil, wire.CmdJoinMaster, uint8(fdirerr.EINVAL)
	}

	var key [16]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, wire.CmdJoinMaster, uint8(fdirerr.EIO)
	}
	peer.SetReplicaKey(key)

	s.roster.MoveToActive(peer)
	s.startReplicationTo(peer)
	s.log.Infow("cluster: slave joined", "server_id", serverID)
	return key[:], wire.CmdJoinMaster, uint8(fdirerr.OK)
}

// handlePingMaster: body is {u64_be inode_sn}. Response is {u64_be
// current_inode_sn, u64_be data_version} so the slave can pull its local
// inode counter forward.
func (s *Server) handlePingMaster(body []byte) ([]byte, wire.Command, uint8) {
	if s.roster.Master() == nil || s.roster.Master().ServerID != s.roster.Myself().ServerID {
		return nil, wire.CmdPingMasterResp, uint8(fdirerr.ENOTMAST)
	}

	resp := binary.BigEndian.AppendUint64(nil, s.tree.CurrentInodeSN())
	resp = binary.BigEndian.AppendUint64(resp, s.roster.Myself().DataVersion())
	return resp, wire.CmdPingMasterResp, uint8(fdirerr.OK)
}

// handlePreSetNextMaster: body is {u32_be candidate_server_id}.
func (s *Server) handlePreSetNextMaster(body []byte) ([]byte, wire.Command, uint8) {
	if len(body) < 4 {
		return nil, wire.CmdPreSetNextMaster, uint8(fdirerr.EINVAL)
	}
	candidateID := int(binary.BigEndian.Uint32(body[0:4]))
	errno := s.election.HandlePreSetNextMaster(candidateID)
	return nil, wire.CmdPreSetNextMaster, uint8(errno)
}

// handleCommitNextMaster: body is {u32_be candidate_server_id}.
func (s *Server) handleCommitNextMaster(body []byte) ([]byte, wire.Command, uint8) {
	if len(body) < 4 {
		return nil, wire.CmdCommitNextMaster, uint8(fdirerr.EINVAL)
	}
	candidateID := int(binary.BigEndian.Uint32(body[0:4]))
	errno := s.election.HandleCommitNextMaster(candidateID)
	return nil, wire.CmdCommitNextMaster, uint8(errno)
}
