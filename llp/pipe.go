package llp

import (
	"net"
	"sync"
)

// pipeAddr is a synthetic net.Addr identifying one end of a Pipe.
type pipeAddr string

func (a pipeAddr) Network() string { return "pipe" }
func (a pipeAddr) String() string  { return string(a) }

// Pipe creates a pair of in-memory, full-duplex LowerLayer values for
// testing: datagrams sent on one end are queued for Recv on the
// other, with no further buffering than the queue itself. Grounded on
// session.Pipe/feedPipe, adapted from a synchronous channel rendez-
// vous to the non-blocking Recv/Send polling contract LowerLayer
// requires.
func Pipe() (a, b *Pipe) {
	aAddr, bAddr := pipeAddr("pipe-a"), pipeAddr("pipe-b")

	toA := make(chan Datagram, 64)
	toB := make(chan Datagram, 64)

	a = &Pipe{self: aAddr, peer: bAddr, recv: toA, send: toB}
	b = &Pipe{self: bAddr, peer: aAddr, recv: toB, send: toA}
	return a, b
}

// Pipe is one end of an in-memory LowerLayer pair returned by
// the Pipe function.
type Pipe struct {
	self, peer net.Addr
	recv       chan Datagram
	send       chan Datagram

	closeOnce sync.Once
}

var _ LowerLayer = (*Pipe)(nil)

// PeerAddr is the address this end's datagrams arrive labelled with
// on the other end.
func (p *Pipe) PeerAddr() net.Addr { return p.peer }

func (p *Pipe) Recv() (Datagram, error) {
	select {
	case d, ok := <-p.recv:
		if !ok {
			return Datagram{}, net.ErrClosed
		}
		return d, nil
	default:
		return Datagram{}, ErrNotReady
	}
}

func (p *Pipe) Send(peer net.Addr, buf []byte) error {
	cp := make([]byte, len(buf))
	copy(cp, buf)
	select {
	case p.send <- Datagram{Buf: cp, Peer: p.self}:
		return nil
	default:
		return ErrBackPressure
	}
}

func (p *Pipe) LocalAddr() net.Addr { return p.self }

func (p *Pipe) Close() error {
	p.closeOnce.Do(func() { close(p.send) })
	return nil
}
