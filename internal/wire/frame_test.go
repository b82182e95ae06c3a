package wire

import "testing"

func TestHeaderPackUnpackRoundTrip(t *testing.T) {
	h := Header{Cmd: CmdCreateDentry, Status: 3, Flags: 1, BodyLen: 1234}
	packed := h.Pack()

	got, err := Unpack(packed[:])
	if err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestUnpackRejectsShortBuffer(t *testing.T) {
	if _, err := Unpack([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short header buffer")
	}
}

func TestUnpackRejectsOverLongBody(t *testing.T) {
	h := Header{Cmd: CmdAck, BodyLen: MaxBodyLen + 1}
	packed := h.Pack()
	if _, err := Unpack(packed[:]); err == nil {
		t.Fatal("expected error for body_len exceeding MaxBodyLen")
	}
}

func TestPutStringGetStringRoundTrip(t *testing.T) {
	buf := PutString(nil, "hello")
	buf = PutString(buf, "world")

	s1, rest, err := GetString(buf)
	if err != nil {
		t.Fatalf("GetString: %v", err)
	}
	if s1 != "hello" {
		t.Fatalf("got %q, want hello", s1)
	}

	s2, rest, err := GetString(rest)
	if err != nil {
		t.Fatalf("GetString: %v", err)
	}
	if s2 != "world" {
		t.Fatalf("got %q, want world", s2)
	}
	if len(rest) != 0 {
		t.Fatalf("expected no trailing bytes, got %d", len(rest))
	}
}

func TestCommandString(t *testing.T) {
	if CmdCreateDentry.String() != "CREATE_DENTRY" {
		t.Fatalf("got %q", CmdCreateDentry.String())
	}
	if Command(255).String() != "UNKNOWN" {
		t.Fatalf("expected UNKNOWN for unregistered command")
	}
}
