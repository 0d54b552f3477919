package sctp

import (
	"net"

	"github.com/webrtc-sctp/sctp/session"
)

// Dial actively opens an association to peer, sending INIT
// immediately and returning a handle whose state reaches ESTABLISHED
// asynchronously once the four-way handshake completes. Grounded on
// cmd/iecat/main.go's net.Dial, generalised from a completed
// connection to a handle over a handshake still in flight.
func (s *Stack) Dial(peer net.Addr, localPort, peerPort uint16) (*Assoc, error) {
	reply, err := s.post(session.Command{
		Kind:      session.CmdConnect,
		Peer:      peer,
		LocalPort: localPort,
		PeerPort:  peerPort,
	})
	if err != nil {
		return nil, err
	}
	if reply.Err != nil {
		return nil, wrapErr(reply.Err)
	}
	return &Assoc{stack: s, id: reply.AssocID}, nil
}
