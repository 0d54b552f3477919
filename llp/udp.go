package llp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// SCTPUDPTunnelingPort is the IANA registered UDP port for SCTP
// encapsulation, per RFC 6951.
const SCTPUDPTunnelingPort = 9899

// UDPConfig configures the UDP encapsulation lower layer. The zero
// value is valid and binds SCTPUDPTunnelingPort on all interfaces.
type UDPConfig struct {
	// Addr is the local address to bind. Empty binds
	// ":9899" (SCTPUDPTunnelingPort on every interface).
	Addr string

	// ReusePort sets SO_REUSEPORT on the listening socket so that
	// several engine instances may share the inbound tunnelling
	// port, the way a production deployment fronted by a load
	// balancer would. Default false.
	ReusePort bool

	// ReadBufSize is the per-Recv scratch buffer size; it must be at
	// least the configured path MTU. Zero defaults to 1500.
	ReadBufSize int
}

func (c UDPConfig) checked() UDPConfig {
	if c.Addr == "" {
		c.Addr = fmt.Sprintf(":%d", SCTPUDPTunnelingPort)
	}
	if c.ReadBufSize <= 0 {
		c.ReadBufSize = 1500
	}
	return c
}

// UDP is a LowerLayer that tunnels SCTP packets over UDP, per RFC
// 6951. A single socket serves every peer association; inbound
// datagrams are demultiplexed by source address one layer up, in the
// packet engine.
type UDP struct {
	conn    *net.UDPConn
	pktConn *ipv4.PacketConn
	cfg     UDPConfig

	mu  sync.Mutex
	buf []byte
}

var _ LowerLayer = (*UDP)(nil)

// ListenUDP opens the UDP encapsulation transport.
func ListenUDP(cfg UDPConfig) (*UDP, error) {
	cfg = cfg.checked()

	lc := net.ListenConfig{}
	if cfg.ReusePort {
		lc.Control = func(_, _ string, c syscall.RawConn) error {
			var setErr error
			err := c.Control(func(fd uintptr) {
				setErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return setErr
		}
	}

	pc, err := lc.ListenPacket(context.Background(), "udp", cfg.Addr)
	if err != nil {
		return nil, err
	}
	conn := pc.(*net.UDPConn)

	pktConn := ipv4.NewPacketConn(conn)
	// Ask the kernel to hand back the destination address on each
	// read so one socket can answer for many locally-bound addresses
	// -- needed because SCTP associations are demultiplexed by peer
	// address, not by which local interface a datagram arrived on.
	_ = pktConn.SetControlMessage(ipv4.FlagDst, true)

	if err := conn.SetReadBuffer(0); err != nil {
		// Non-fatal: leave the OS default socket buffer in place.
		_ = err
	}

	return &UDP{
		conn:    conn,
		pktConn: pktConn,
		cfg:     cfg,
		buf:     make([]byte, cfg.ReadBufSize),
	}, nil
}

// Recv implements LowerLayer. It never blocks the caller for longer
// than is needed for one non-blocking kernel read: callers poll it
// from the packet engine's select loop.
func (u *UDP) Recv() (Datagram, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if err := u.conn.SetReadDeadline(time.Now()); err != nil {
		return Datagram{}, err
	}
	n, _, peer, err := u.pktConn.ReadFrom(u.buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return Datagram{}, ErrNotReady
		}
		return Datagram{}, err
	}

	out := make([]byte, n)
	copy(out, u.buf[:n])
	return Datagram{Buf: out, Peer: peer}, nil
}

// Send implements LowerLayer.
func (u *UDP) Send(peer net.Addr, buf []byte) error {
	addr, ok := peer.(*net.UDPAddr)
	if !ok {
		return fmt.Errorf("sctp/llp: peer %v is not a UDP address", peer)
	}

	if err := u.conn.SetWriteDeadline(time.Now()); err != nil {
		return err
	}
	_, err := u.pktConn.WriteTo(buf, nil, addr)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return ErrBackPressure
		}
		return err
	}
	return nil
}

// LocalAddr implements LowerLayer.
func (u *UDP) LocalAddr() net.Addr { return u.conn.LocalAddr() }

// Close implements LowerLayer.
func (u *UDP) Close() error { return u.conn.Close() }
