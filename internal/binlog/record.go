// Package binlog implements FastDIR's replicated write log: the record
// model, the master-side producer, the slave-side replica consumer, and
// the on-disk write thread.
package binlog

import (
	"encoding/binary"
	"fmt"
)

// Op identifies what a Record does to the dentry tree.
type Op uint8

const (
	OpCreateDentry Op = iota + 1
	OpRemoveDentry
)

func (o Op) String() string {
	switch o {
	case OpCreateDentry:
		return "CREATE_DENTRY"
	case OpRemoveDentry:
		return "REMOVE_DENTRY"
	default:
		return "UNKNOWN"
	}
}

// Record is one binlog entry. DataVersion is strictly monotone across the
// whole binlog; a gap between consecutive records observed by a slave is a
// fatal, unrecoverable error.
type Record struct {
	DataVersion uint64
	Op          Op
	Namespace   string
	Path        string
	Data        []byte // opaque payload for CREATE_DENTRY, unused for REMOVE
}

// Encode serializes r into the wire/binlog-file representation:
//
//	u64 data_version
//	u8  op
//	u16 ns_len, ns bytes
//	u16 path_len, path bytes
//	u32 data_len, data bytes
func (r Record) Encode() []byte {
	buf := make([]byte, 0, 8+1+2+len(r.Namespace)+2+len(r.Path)+4+len(r.Data))
	buf = binary.BigEndian.AppendUint64(buf, r.DataVersion)
	buf = append(buf, byte(r.Op))
	buf = appendString16(buf, r.Namespace)
	buf = appendString16(buf, r.Path)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(r.Data)))
	buf = append(buf, r.Data...)
	return buf
}

// DecodeRecord is the inverse of Encode. It returns the number of bytes
// consumed so callers can decode a stream of back-to-back records.
func DecodeRecord(buf []byte) (Record, int, error) {
	const minHeader = 8 + 1 + 2 + 2 + 4
	if len(buf) < minHeader {
		return Record{}, 0, fmt.Errorf("binlog: short record header: %d bytes", len(buf))
	}

	var r Record
	off := 0
	r.DataVersion = binary.BigEndian.Uint64(buf[off : off+8])
	off += 8
	r.Op = Op(buf[off])
	off++

	ns, n, err := readString16(buf[off:])
	if err != nil {
		return Record{}, 0, fmt.Errorf("binlog: namespace: %w", err)
	}
	r.Namespace = ns
	off += n

	path, n, err := readString16(buf[off:])
	if err != nil {
		return Record{}, 0, fmt.Errorf("binlog: path: %w", err)
	}
	r.Path = path
	off += n

	if len(buf) < off+4 {
		return Record{}, 0, fmt.Errorf("binlog: short data length field")
	}
	dataLen := int(binary.BigEndian.Uint32(buf[off : off+4]))
	off += 4
	if len(buf) < off+dataLen {
		return Record{}, 0, fmt.Errorf("binlog: short data payload: want %d, have %d", dataLen, len(buf)-off)
	}
	if dataLen > 0 {
		r.Data = append([]byte(nil), buf[off:off+dataLen]...)
	}
	off += dataLen

	return r, off, nil
}

func appendString16(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

func readString16(buf []byte) (string, int, error) {
	if len(buf) < 2 {
		return "", 0, fmt.Errorf("short length field")
	}
	n := int(binary.BigEndian.Uint16(buf[0:2]))
	if len(buf) < 2+n {
		return "", 0, fmt.Errorf("short body: want %d, have %d", n, len(buf)-2)
	}
	return string(buf[2 : 2+n]), 2 + n, nil
}

// DecodeAll decodes every record in buf, erroring on any trailing partial
// record — used by replay-from-file (the "replaying the whole binlog file
// gives identical dentry tree" property) and by the replica push path.
func DecodeAll(buf []byte) ([]Record, error) {
	var records []Record
	for len(buf) > 0 {
		r, n, err := DecodeRecord(buf)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
		buf = buf[n:]
	}
	return records, nil
}
