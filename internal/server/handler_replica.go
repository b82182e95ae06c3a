package server

import (
	"encoding/binary"
	"time"

	"strconv"

	"fastdir/internal/binlog"
	"fastdir/internal/cluster"
	"fastdir/internal/fdirerr"
	"fastdir/internal/metrics"
	"fastdir/internal/wire"
)

// replicaConsumerFor returns (creating if needed) the ReplicaConsumer for
// the peer pushing to us, keyed by server_id the way
// replica_consumer_thread_init creates one context per accepted session.
func (s *Server) replicaConsumerFor(serverID int) *binlog.ReplicaConsumer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.replicaConsumers[serverID]; ok {
		return c
	}
	pool := binlog.NewBufferPool(8, s.cfg.BinlogBufferSize)
	// Route replayed records through the local write thread so they are
	// persisted to this slave's own binlog file before being counted as
	// applied, not just mutated in memory (§4.8 + §4.9).
	c := binlog.NewReplicaConsumer(pool, s.writer.Submit, 64)
	c.Start()
	s.replicaConsumers[serverID] = c
	return c
}

// handlePushBinlog is the slave-side PUSH_BINLOG_REQ handler. Body is
// {u32_be from_server_id, [16]byte replica_key, u64_be last_data_version,
// raw_records...}. Response is PUSH_BINLOG_RESP {u32_be count, [{u64_be
// data_version, u8 err_no}]}, matching §4.8's deal_replica_push_result
// packing. replica_key must match the one this node's JOIN_MASTER received
// from the same master, so a stale connection from a demoted former master
// can't replay records into a session it no longer owns.
func (s *Server) handlePushBinlog(body []byte) ([]byte, wire.Command, uint8) {
	if len(body) < 28 {
		return nil, wire.CmdPushBinlogResp, uint8(fdirerr.EINVAL)
	}
	fromServerID := int(binary.BigEndian.Uint32(body[0:4]))
	var key [16]byte
	copy(key[:], body[4:20])
	lastDataVersion := binary.BigEndian.Uint64(body[20:28])
	raw := body[28:]

	master, ok := s.roster.GetPeerByID(fromServerID)
	if !ok || master.ReplicaKey() != key {
		return nil, wire.CmdPushBinlogResp, uint8(fdirerr.EINVAL)
	}

	records, err := binlog.DecodeAll(raw)
	if err != nil {
		return nil, wire.CmdPushBinlogResp, uint8(fdirerr.EPROTO)
	}

	consumer := s.replicaConsumerFor(fromServerID)
	if err := consumer.PushRaw(raw, lastDataVersion, s.cfg.NetworkTimeout()); err != nil {
		return nil, wire.CmdPushBinlogResp, uint8(fdirerr.EAGAIN)
	}

	results := waitForResults(consumer, len(records), s.cfg.NetworkTimeout())

	if peer, ok := s.roster.GetPeerByID(fromServerID); ok && len(results) > 0 {
		peer.BumpDataVersion(results[len(results)-1].DataVersion)
	}
	s.roster.Myself().BumpDataVersion(consumer.LastDataVersion())

	return encodePushBinlogResp(results), wire.CmdPushBinlogResp, uint8(fdirerr.OK)
}

// waitForResults polls DrainResults until want results have arrived or
// deadline elapses, the Go analogue of the network-egress side of
// deal_replica_push_result without a full event-loop writable callback.
func waitForResults(c *binlog.ReplicaConsumer, want int, deadline time.Duration) []binlog.RecordProcessResult {
	var out []binlog.RecordProcessResult
	end := time.Now().Add(deadline)
	for len(out) < want && time.Now().Before(end) {
		out = append(out, c.DrainResults(want-len(out))...)
		if len(out) < want {
			time.Sleep(time.Millisecond)
		}
	}
	return out
}

func encodePushBinlogResp(results []binlog.RecordProcessResult) []byte {
	buf := binary.BigEndian.AppendUint32(nil, uint32(len(results)))
	for _, r := range results {
		buf = binary.BigEndian.AppendUint64(buf, r.DataVersion)
		if r.Err != nil {
			buf = append(buf, byte(fdirerr.EIO))
		} else {
			buf = append(buf, byte(fdirerr.OK))
		}
	}
	return buf
}

// ReplicationPusher drives the master-side fan-out of produced records to
// one active slave: subscribe to the producer's per-slave channel, batch
// pending records, and push them as PUSH_BINLOG_REQ.
type ReplicationPusher struct {
	myServerID int
	producer   *binlog.Producer
	bufferSize int
}

func NewReplicationPusher(myServerID int, producer *binlog.Producer, bufferSize int) *ReplicationPusher {
	return &ReplicationPusher{myServerID: myServerID, producer: producer, bufferSize: bufferSize}
}

// Run subscribes to the producer and pushes to peer until stopCh closes
// or the subscription channel is closed (peer demoted/removed).
func (p *ReplicationPusher) Run(peer *cluster.Peer, stopCh <-chan struct{}) {
	ch, unsubscribe := p.producer.Subscribe(peer.ServerID, 256)
	defer unsubscribe()

	for {
		select {
		case rec, ok := <-ch:
			if !ok {
				return
			}
			batch := []byte{}
			batch = append(batch, rec.Encode()...)
			lastVersion := rec.DataVersion

			// Opportunistically coalesce any further already-queued records
			// into the same push, up to binlog_buffer_size.
		drain:
			for len(batch) < p.bufferSize {
				select {
				case rec2, ok2 := <-ch:
					if !ok2 {
						break drain
					}
					batch = append(batch, rec2.Encode()...)
					lastVersion = rec2.DataVersion
				default:
					break drain
				}
			}

			if err := p.push(peer, lastVersion, batch); err != nil {
				return
			}
			lag := p.producer.CurrentVersion() - lastVersion
			metrics.ReplicationLag.WithLabelValues(strconv.Itoa(peer.ServerID)).Set(float64(lag))
		case <-stopCh:
			return
		}
	}
}

func (p *ReplicationPusher) push(peer *cluster.Peer, lastVersion uint64, batch []byte) error {
	key := peer.ReplicaKey()
	body := binary.BigEndian.AppendUint32(nil, uint32(p.myServerID))
	body = append(body, key[:]...)
	body = binary.BigEndian.AppendUint64(body, lastVersion)
	body = append(body, batch...)

	frame, err := peer.Conn.Call(wire.CmdPushBinlogReq, body, wire.CmdPushBinlogResp)
	if err != nil {
		return err
	}
	if frame.Header.Status != uint8(fdirerr.OK) {
		return fdirerr.New(fdirerr.Errno(frame.Header.Status), "push binlog rejected")
	}
	peer.SetDataVersion(lastVersion)
	return nil
}
