// Package llp abstracts the lower-layer protocol (LLP) that carries
// SCTP packets: a best-effort datagram transport such as UDP
// encapsulation (RFC 6951) or DTLS. See spec.md §4.2.
package llp

import (
	"errors"
	"net"
)

// ErrNotReady signals that Recv has no datagram available right now.
// It is not a failure -- the caller should try again once the
// transport signals readiness by whatever mechanism it uses (a
// readable channel, an event loop wakeup, ...).
var ErrNotReady = errors.New("sctp/llp: not ready")

// ErrBackPressure signals that Send could not enqueue the datagram
// without blocking. Per spec.md §4.2 this is surfaced to the engine
// so it can stop draining its outbound queue rather than dropping.
var ErrBackPressure = errors.New("sctp/llp: back pressure")

// Datagram is one inbound unit: an opaque buffer paired with the peer
// address it arrived from.
type Datagram struct {
	Buf  []byte
	Peer net.Addr
}

// LowerLayer is the contract every concrete transport (UDP
// encapsulation, DTLS, or an in-memory test fake) must satisfy.
// Datagram boundaries are preserved; delivery is unreliable; ordering
// across or within peers is not guaranteed. Both methods are
// non-blocking: Recv returns ErrNotReady rather than blocking when
// nothing is available, and Send returns ErrBackPressure rather than
// blocking when the transport cannot accept more right now.
type LowerLayer interface {
	// Recv yields the next framed datagram, or ErrNotReady.
	Recv() (Datagram, error)

	// Send attempts to hand buf to peer. It returns ErrBackPressure
	// if the transport cannot accept it without blocking.
	Send(peer net.Addr, buf []byte) error

	// LocalAddr is the transport's own bound address.
	LocalAddr() net.Addr

	// Close releases the transport's resources. Recv/Send on a
	// closed LowerLayer return net.ErrClosed.
	Close() error
}
