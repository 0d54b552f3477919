package session

import (
	"net"
	"testing"
	"time"

	"github.com/webrtc-sctp/sctp/llp"
)

func doCmd(e *Engine, cmd Command) Reply {
	cmd.Reply = make(chan Reply, 1)
	e.handleCommand(cmd)
	return <-cmd.Reply
}

// stepBoth advances both engines n times, giving each a chance to
// drain what the other just sent.
func stepBoth(t *testing.T, a, b *Engine, n int) {
	t.Helper()
	now := time.Now()
	for i := 0; i < n; i++ {
		a.Step(now)
		b.Step(now)
	}
}

func newLoopbackPair(t *testing.T) (client, server *Engine, clientLL, serverLL *llp.Pipe) {
	t.Helper()
	clientLL, serverLL = llp.Pipe()
	cfg := DefaultConfig()
	client = NewEngine(clientLL, cfg, nil, Logger{})
	server = NewEngine(serverLL, cfg, nil, Logger{})
	return
}

func TestLoopbackHandshakeEstablishes(t *testing.T) {
	client, server, _, _ := newLoopbackPair(t)

	listenReply := doCmd(server, Command{Kind: CmdListen, LocalPort: 2000})
	if listenReply.Err != nil {
		t.Fatalf("listen: %v", listenReply.Err)
	}
	l := listenReply.Listener

	connectReply := doCmd(client, Command{Kind: CmdConnect, Peer: serverLLAddrOf(server), LocalPort: 3000, PeerPort: 2000})
	if connectReply.Err != nil {
		t.Fatalf("connect: %v", connectReply.Err)
	}
	clientID := connectReply.AssocID

	stepBoth(t, client, server, 10)

	select {
	case serverID := <-l.accept:
		sa := server.byID[serverID]
		if sa.State != StateEstablished {
			t.Fatalf("server association state = %v, want ESTABLISHED", sa.State)
		}
	default:
		t.Fatal("server never accepted an association")
	}

	ca := client.byID[clientID]
	if ca.State != StateEstablished {
		t.Fatalf("client association state = %v, want ESTABLISHED", ca.State)
	}
	if ca.LocalTag == 0 || ca.PeerTag == 0 {
		t.Fatalf("tags not established: local=%d peer=%d", ca.LocalTag, ca.PeerTag)
	}
}

// serverLLAddrOf returns the peer address a client dials to reach
// server's lower layer -- for llp.Pipe this is the pipe's own local
// address, since each end is the other's fixed peer.
func serverLLAddrOf(server *Engine) net.Addr {
	return server.ll.LocalAddr()
}

func TestLoopbackEcho(t *testing.T) {
	client, server, _, _ := newLoopbackPair(t)

	listenReply := doCmd(server, Command{Kind: CmdListen, LocalPort: 2001})
	if listenReply.Err != nil {
		t.Fatalf("listen: %v", listenReply.Err)
	}
	accept := listenReply.Listener

	connectReply := doCmd(client, Command{Kind: CmdConnect, Peer: server.ll.LocalAddr(), LocalPort: 3001, PeerPort: 2001})
	clientID := connectReply.AssocID

	stepBoth(t, client, server, 10)

	var serverID ID
	select {
	case serverID = <-accept.accept:
	default:
		t.Fatal("no accepted association")
	}

	if r := doCmd(client, Command{Kind: CmdSend, AssocID: clientID, Stream: 0, PPID: 1, Ordered: true, Data: []byte("ping")}); r.Err != nil {
		t.Fatalf("client send: %v", r.Err)
	}
	stepBoth(t, client, server, 10)

	var got []Message
	for i := 0; i < 5 && len(got) == 0; i++ {
		r := doCmd(server, Command{Kind: CmdRecvPoll, AssocID: serverID})
		got = r.Messages
		stepBoth(t, client, server, 2)
	}
	if len(got) != 1 || string(got[0].Data) != "ping" {
		t.Fatalf("server received %+v, want one message \"ping\"", got)
	}

	if r := doCmd(server, Command{Kind: CmdSend, AssocID: serverID, Stream: 0, PPID: 1, Ordered: true, Data: []byte("pong")}); r.Err != nil {
		t.Fatalf("server send: %v", r.Err)
	}
	stepBoth(t, client, server, 10)

	var back []Message
	for i := 0; i < 5 && len(back) == 0; i++ {
		r := doCmd(client, Command{Kind: CmdRecvPoll, AssocID: clientID})
		back = r.Messages
		stepBoth(t, client, server, 2)
	}
	if len(back) != 1 || string(back[0].Data) != "pong" {
		t.Fatalf("client received %+v, want one message \"pong\"", back)
	}
}

func TestLoopbackFragmentationRoundTrip(t *testing.T) {
	client, server, _, _ := newLoopbackPair(t)

	listenReply := doCmd(server, Command{Kind: CmdListen, LocalPort: 2003})
	accept := listenReply.Listener

	connectReply := doCmd(client, Command{Kind: CmdConnect, Peer: server.ll.LocalAddr(), LocalPort: 3002, PeerPort: 2003})
	clientID := connectReply.AssocID
	stepBoth(t, client, server, 10)

	var serverID ID
	select {
	case serverID = <-accept.accept:
	default:
		t.Fatal("no accepted association")
	}

	payload := padding(4000)
	if r := doCmd(client, Command{Kind: CmdSend, AssocID: clientID, Stream: 0, Ordered: true, Data: payload}); r.Err != nil {
		t.Fatalf("send: %v", r.Err)
	}

	var got []Message
	for i := 0; i < 40 && len(got) == 0; i++ {
		stepBoth(t, client, server, 2)
		r := doCmd(server, Command{Kind: CmdRecvPoll, AssocID: serverID})
		got = r.Messages
	}
	if len(got) != 1 {
		t.Fatalf("got %d messages, want 1", len(got))
	}
	if len(got[0].Data) != len(payload) {
		t.Fatalf("got %d bytes, want %d", len(got[0].Data), len(payload))
	}
	for i := range payload {
		if got[0].Data[i] != payload[i] {
			t.Fatalf("byte %d mismatch: got %d want %d", i, got[0].Data[i], payload[i])
		}
	}

	// Let the client read the server's SACKs before checking its
	// retransmission queue.
	stepBoth(t, client, server, 2)

	ca := client.byID[clientID]
	if len(ca.inFlight) != 0 {
		t.Errorf("retransmission queue not drained: %d chunks remain", len(ca.inFlight))
	}
}

func TestLoopbackOrderlyShutdown(t *testing.T) {
	client, server, _, _ := newLoopbackPair(t)

	listenReply := doCmd(server, Command{Kind: CmdListen, LocalPort: 2011})
	accept := listenReply.Listener

	connectReply := doCmd(client, Command{Kind: CmdConnect, Peer: server.ll.LocalAddr(), LocalPort: 3010, PeerPort: 2011})
	clientID := connectReply.AssocID
	stepBoth(t, client, server, 10)

	var serverID ID
	select {
	case serverID = <-accept.accept:
	default:
		t.Fatal("no accepted association")
	}
	_ = serverID

	if r := doCmd(client, Command{Kind: CmdShutdown, AssocID: clientID}); r.Err != nil {
		t.Fatalf("shutdown: %v", r.Err)
	}
	stepBoth(t, client, server, 20)

	ca := client.byID[clientID]
	if ca != nil && ca.State != StateClosed {
		t.Fatalf("client association state = %v, want reaped or CLOSED", ca.State)
	}
}
