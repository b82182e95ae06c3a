package wire

// Command is the single-byte opcode in a frame header. The three command
// families from §6 — service, cluster, replica — share one numbering space
// so a connection never has to guess which table to consult.
type Command uint8

const (
	CmdNone Command = iota

	// Service (client-facing).
	CmdCreateDentry
	CmdRemoveDentry
	CmdListDentryFirstReq
	CmdListDentryFirstResp
	CmdListDentryNextReq
	CmdServiceStatReq
	CmdServiceStatResp
	CmdClusterStatReq
	CmdClusterStatResp
	CmdGetMasterReq
	CmdGetMasterResp
	CmdGetSlavesReq
	CmdGetSlavesResp
	CmdGetReadableServerReq
	CmdGetReadableServerResp
	CmdAck

	// Cluster (peer-facing).
	CmdGetServerStatusReq
	CmdGetServerStatusResp
	CmdJoinMaster
	CmdPingMasterReq
	CmdPingMasterResp
	CmdPreSetNextMaster
	CmdCommitNextMaster

	// Replica (master -> slave).
	CmdPushBinlogReq
	CmdPushBinlogResp

	// Error is not a distinct command: it is any of the above Resp/Ack
	// commands with a non-zero status byte and an optional message body.
)

var commandNames = map[Command]string{
	CmdCreateDentry:          "CREATE_DENTRY",
	CmdRemoveDentry:          "REMOVE_DENTRY",
	CmdListDentryFirstReq:    "LIST_DENTRY_FIRST_REQ",
	CmdListDentryFirstResp:   "LIST_DENTRY_FIRST_RESP",
	CmdListDentryNextReq:     "LIST_DENTRY_NEXT_REQ",
	CmdServiceStatReq:        "SERVICE_STAT_REQ",
	CmdServiceStatResp:       "SERVICE_STAT_RESP",
	CmdClusterStatReq:        "CLUSTER_STAT_REQ",
	CmdClusterStatResp:       "CLUSTER_STAT_RESP",
	CmdGetMasterReq:          "GET_MASTER_REQ",
	CmdGetMasterResp:         "GET_MASTER_RESP",
	CmdGetSlavesReq:          "GET_SLAVES_REQ",
	CmdGetSlavesResp:         "GET_SLAVES_RESP",
	CmdGetReadableServerReq:  "GET_READABLE_SERVER_REQ",
	CmdGetReadableServerResp: "GET_READABLE_SERVER_RESP",
	CmdAck:                   "ACK",
	CmdGetServerStatusReq:    "GET_SERVER_STATUS_REQ",
	CmdGetServerStatusResp:   "GET_SERVER_STATUS_RESP",
	CmdJoinMaster:            "JOIN_MASTER",
	CmdPingMasterReq:         "PING_MASTER_REQ",
	CmdPingMasterResp:        "PING_MASTER_RESP",
	CmdPreSetNextMaster:      "PRE_SET_NEXT_MASTER",
	CmdCommitNextMaster:      "COMMIT_NEXT_MASTER",
	CmdPushBinlogReq:         "PUSH_BINLOG_REQ",
	CmdPushBinlogResp:        "PUSH_BINLOG_RESP",
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return "UNKNOWN"
}
