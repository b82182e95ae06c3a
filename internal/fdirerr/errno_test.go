package fdirerr

import (
	"errors"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	e := New(EEXIST, "dentry already exists")
	if e.Error() != "EEXIST: dentry already exists" {
		t.Fatalf("got %q", e.Error())
	}

	bare := New(ENOENT, "")
	if bare.Error() != "ENOENT" {
		t.Fatalf("got %q", bare.Error())
	}
}

func TestIsNetwork(t *testing.T) {
	netErr := &NetworkError{Peer: "10.0.0.1:11401", Err: errors.New("connection reset")}
	if !IsNetwork(netErr) {
		t.Fatal("expected NetworkError to be classified as network")
	}
	if IsNetwork(New(EINVAL, "bad request")) {
		t.Fatal("expected application error not to be classified as network")
	}
}

func TestNetworkErrorUnwrap(t *testing.T) {
	underlying := errors.New("timeout")
	netErr := &NetworkError{Peer: "peer", Err: underlying}
	if !errors.Is(netErr, underlying) {
		t.Fatal("expected errors.Is to find the wrapped underlying error")
	}
}
