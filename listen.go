package sctp

import (
	"github.com/webrtc-sctp/sctp/session"
)

// Listener accepts associations completed on one local SCTP port.
// Grounded on cmd/iecat/main.go's net.Listen/Accept loop, adapted from
// one net.Conn per accept to one *Assoc.
type Listener struct {
	stack *Stack
	inner *session.Listener
}

// Listen registers a listener on port. Incoming INITs addressed to it
// complete their handshake and land on the listener's accept queue,
// per spec.md §4.5.
func (s *Stack) Listen(port uint16) (*Listener, error) {
	reply, err := s.post(session.Command{Kind: session.CmdListen, LocalPort: port})
	if err != nil {
		return nil, err
	}
	if reply.Err != nil {
		return nil, wrapErr(reply.Err)
	}
	return &Listener{stack: s, inner: reply.Listener}, nil
}

// Accept blocks until an association completes its handshake on this
// listener, or the listener is closed.
func (l *Listener) Accept() (*Assoc, error) {
	id, err := l.inner.Accept()
	if err != nil {
		return nil, wrapErr(err)
	}
	return &Assoc{stack: l.stack, id: id}, nil
}

// Close stops accepting new associations; associations already
// accepted are unaffected.
func (l *Listener) Close() error {
	_, err := l.stack.post(session.Command{Kind: session.CmdCloseListener, LocalPort: l.inner.Port})
	return err
}
