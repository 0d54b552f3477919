package sctp_test

import (
	"testing"
	"time"

	"github.com/webrtc-sctp/sctp"
	"github.com/webrtc-sctp/sctp/llp"
	"github.com/webrtc-sctp/sctp/session"
)

// TestLoopbackEcho exercises the public handle surface end to end
// (Listen/Accept/Dial/Send/Recv) rather than the session package's
// Engine.Step-driven unit tests, over the same in-memory Pipe.
func TestLoopbackEcho(t *testing.T) {
	clientLL, serverLL := llp.Pipe()

	server := sctp.New(serverLL, session.DefaultConfig(), nil)
	defer server.Close()
	client := sctp.New(clientLL, session.DefaultConfig(), nil)
	defer client.Close()

	l, err := server.Listen(2000)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	serverDone := make(chan error, 1)
	go func() {
		a, err := l.Accept()
		if err != nil {
			serverDone <- err
			return
		}
		m, err := a.Recv(2 * time.Second)
		if err != nil {
			serverDone <- err
			return
		}
		if string(m.Data) != "ping" {
			serverDone <- errUnexpected(m.Data)
			return
		}
		serverDone <- a.Send(m.Stream, m.PPID, true, []byte("pong"))
	}()

	a, err := client.Dial(serverLL.LocalAddr(), 3000, 2000)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	// Dial returns while the handshake is still in flight, and Send
	// reports BadState until the association is ESTABLISHED.
	deadline := time.Now().Add(2 * time.Second)
	for {
		err = a.Send(0, 1, true, []byte("ping"))
		if e, ok := err.(*sctp.Error); ok && e.Kind == sctp.BadState && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		break
	}
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	m, err := a.Recv(2 * time.Second)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if string(m.Data) != "pong" {
		t.Fatalf("got %q, want \"pong\"", m.Data)
	}

	if err := <-serverDone; err != nil {
		t.Fatalf("server side: %v", err)
	}
}

type errUnexpected []byte

func (e errUnexpected) Error() string { return "unexpected payload: " + string(e) }
