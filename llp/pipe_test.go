package llp

import (
	"bytes"
	"net"
	"testing"
)

func TestPipeRoundTrip(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	if _, err := a.Recv(); err != ErrNotReady {
		t.Fatalf("empty Recv: got %v, want ErrNotReady", err)
	}

	want := []byte("ping")
	if err := a.Send(a.PeerAddr(), want); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got, err := b.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if !bytes.Equal(got.Buf, want) {
		t.Errorf("got %q, want %q", got.Buf, want)
	}
	if got.Peer.String() != a.LocalAddr().String() {
		t.Errorf("got peer %v, want %v", got.Peer, a.LocalAddr())
	}
}

func TestPipeCloseSignalsOtherEnd(t *testing.T) {
	a, b := Pipe()
	a.Close()

	if _, err := b.Recv(); err != net.ErrClosed {
		t.Fatalf("Recv after peer close: got %v, want net.ErrClosed", err)
	}
}
