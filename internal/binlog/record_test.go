package binlog

import (
	"bytes"
	"testing"
)

func TestRecordEncodeDecodeRoundTrip(t *testing.T) {
	rec := Record{
		DataVersion: 42,
		Op:          OpCreateDentry,
		Namespace:   "test",
		Path:        "/a/b",
		Data:        []byte("payload"),
	}

	buf := rec.Encode()
	got, n, err := DecodeRecord(buf)
	if err != nil {
		t.Fatalf("DecodeRecord: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d bytes, want %d", n, len(buf))
	}
	if got.DataVersion != rec.DataVersion || got.Op != rec.Op || got.Namespace != rec.Namespace || got.Path != rec.Path {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, rec)
	}
	if !bytes.Equal(got.Data, rec.Data) {
		t.Fatalf("data mismatch: got %v, want %v", got.Data, rec.Data)
	}
}

func TestDecodeAllBackToBackRecords(t *testing.T) {
	r1 := Record{DataVersion: 1, Op: OpCreateDentry, Namespace: "ns", Path: "/a"}
	r2 := Record{DataVersion: 2, Op: OpRemoveDentry, Namespace: "ns", Path: "/a"}

	var buf []byte
	buf = append(buf, r1.Encode()...)
	buf = append(buf, r2.Encode()...)

	records, err := DecodeAll(buf)
	if err != nil {
		t.Fatalf("DecodeAll: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].DataVersion != 1 || records[1].DataVersion != 2 {
		t.Fatalf("unexpected ordering: %+v", records)
	}
}

func TestDecodeRecordRejectsShortBuffer(t *testing.T) {
	if _, _, err := DecodeRecord([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestDecodeRecordRejectsTruncatedData(t *testing.T) {
	rec := Record{DataVersion: 1, Op: OpCreateDentry, Namespace: "ns", Path: "/a", Data: []byte("0123456789")}
	buf := rec.Encode()
	if _, _, err := DecodeRecord(buf[:len(buf)-5]); err == nil {
		t.Fatal("expected error for truncated data payload")
	}
}
