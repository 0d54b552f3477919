package session

import (
	"crypto/rand"
	"encoding/binary"
	"net"
	"time"

	"github.com/webrtc-sctp/sctp/chunk"
)

// State is one of the eight association states of spec.md §4.3.
type State int

const (
	StateClosed State = iota
	StateCookieWait
	StateCookieEchoed
	StateEstablished
	StateShutdownPending
	StateShutdownSent
	StateShutdownReceived
	StateShutdownAckSent
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateCookieWait:
		return "COOKIE-WAIT"
	case StateCookieEchoed:
		return "COOKIE-ECHOED"
	case StateEstablished:
		return "ESTABLISHED"
	case StateShutdownPending:
		return "SHUTDOWN-PENDING"
	case StateShutdownSent:
		return "SHUTDOWN-SENT"
	case StateShutdownReceived:
		return "SHUTDOWN-RECEIVED"
	case StateShutdownAckSent:
		return "SHUTDOWN-ACK-SENT"
	default:
		return "?"
	}
}

// Association is the per-peer state machine of spec.md §4.3, owned
// exclusively by one Engine goroutine; none of its fields are
// protected by a lock because nothing outside that goroutine touches
// them (spec.md §5).
type Association struct {
	ID   ID
	Peer net.Addr

	LocalPort uint16
	PeerPort  uint16

	LocalTag uint32
	PeerTag  uint32

	State State
	cfg   Config

	// Send side.
	localNextTSN uint32 // next TSN to assign to an outbound fragment
	cumTSNAck    uint32 // highest TSN the peer has cumulatively acked
	inFlight     []*outChunk
	sendQueue    []*outChunk
	missCounts   map[uint32]int // TSN -> duplicate-SACK-miss count, for fast retransmit

	cwnd, ssthresh, peerRwnd uint32
	sendQueueBytes           int

	srtt, rttvar, rto time.Duration

	// Receive side.
	recvCumTSN uint32 // highest contiguous TSN received from the peer
	recvGaps   map[uint32]struct{}
	recvDups   []uint32
	rwnd       uint32

	streamsOut map[uint16]uint16 // next outbound SSN per stream
	streamsIn  map[uint16]*streamIn

	sackImmediate bool

	// Handshake bookkeeping.
	localInitialTSN uint32
	peerInitialTSN  uint32
	cookie          []byte // echoed cookie, active side only, held until COOKIE-ACK

	// Timers.
	t1, t2, t3, hb, sackTimer timer

	// hbOutstanding is true between sending a HEARTBEAT and either its
	// HEARTBEAT ACK or the next heartbeat interval; hbMisses counts
	// consecutive unanswered heartbeats against cfg.PathMaxRetransmits.
	hbOutstanding bool
	hbMisses      int

	out []chunk.Raw // outbound chunks accumulated this processing round

	readyMsgs []Message // reassembled messages awaiting delivery to the handle

	stats *Stats
}

func genTag() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("sctp/session: failed to generate verification tag: " + err.Error())
	}
	tag := binary.BigEndian.Uint32(b[:])
	if tag == 0 {
		tag = 1
	}
	return tag
}

func genInitialTSN() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("sctp/session: failed to generate initial TSN: " + err.Error())
	}
	return binary.BigEndian.Uint32(b[:])
}

func newAssociation(cfg Config, peer net.Addr, localPort, peerPort uint16, stats *Stats) *Association {
	cfg = cfg.checked()
	a := &Association{
		ID:         NewID(),
		Peer:       peer,
		LocalPort:  localPort,
		PeerPort:   peerPort,
		cfg:        cfg,
		cwnd:       uint32(4 * cfg.MTU),
		ssthresh:   1 << 30,
		rwnd:       uint32(cfg.SendQueueHighWater),
		rto:        cfg.RTOInitial,
		streamsOut: make(map[uint16]uint16),
		streamsIn:  make(map[uint16]*streamIn),
		missCounts: make(map[uint32]int),
		recvGaps:   make(map[uint32]struct{}),
		stats:      stats,
	}
	for i := uint16(0); i < cfg.InboundStreams; i++ {
		a.streamsIn[i] = newStreamIn()
	}
	return a
}

// NewActive starts an association with an active OPEN: emit INIT, arm
// T1-init, enter COOKIE-WAIT. Grounded on spec.md §4.3 "Handshake
// (active side)".
func NewActive(cfg Config, peer net.Addr, localPort, peerPort uint16, stats *Stats) *Association {
	a := newAssociation(cfg, peer, localPort, peerPort, stats)
	a.LocalTag = genTag()
	a.localInitialTSN = genInitialTSN()
	a.localNextTSN = a.localInitialTSN
	a.cumTSNAck = a.localInitialTSN - 1
	a.State = StateCookieWait

	a.out = append(a.out, chunk.EncodeInit(chunk.Init{
		InitiateTag:     a.LocalTag,
		AdvertisedRwnd:  a.rwnd,
		OutboundStreams: cfg.OutboundStreams,
		InboundStreams:  cfg.InboundStreams,
		InitialTSN:      a.localInitialTSN,
	}))
	a.t1.arm(time.Now(), cfg.RTOInitial)
	if stats != nil {
		stats.AssocsStarted.Inc()
	}
	return a
}

// NewPassiveFromCookie materialises an association atomically from a
// verified state cookie on receipt of COOKIE-ECHO, entering
// ESTABLISHED directly with no COOKIE-WAIT/COOKIE-ECHOED interval, per
// spec.md §4.3 "Handshake (passive side)".
func NewPassiveFromCookie(cfg Config, peer net.Addr, localPort, peerPort uint16, body cookieBody, stats *Stats) *Association {
	a := newAssociation(cfg, peer, localPort, peerPort, stats)
	a.LocalTag = body.LocalVerifTag
	a.PeerTag = body.InitiateTag
	a.localInitialTSN = body.LocalInitialTSN
	a.localNextTSN = a.localInitialTSN
	a.cumTSNAck = a.localInitialTSN - 1
	a.peerInitialTSN = body.PeerInitialTSN
	a.recvCumTSN = body.PeerInitialTSN - 1
	a.cfg.OutboundStreams = body.OutboundStreams
	a.cfg.InboundStreams = body.InboundStreams
	for i := uint16(0); i < body.InboundStreams; i++ {
		a.streamsIn[i] = newStreamIn()
	}
	a.State = StateEstablished
	a.out = append(a.out, chunk.EncodeCookieAck())
	if stats != nil {
		stats.AssocsStarted.Inc()
		stats.AssocsEstablished.Inc()
	}
	return a
}

// TakeOutgoing drains and returns every chunk accumulated since the
// last call, for the Engine to packetize and hand to the lower layer.
func (a *Association) TakeOutgoing() []chunk.Raw {
	out := a.out
	a.out = nil
	return out
}

// TakeDeliverable drains messages reassembled and ready for the
// handle's recv side.
func (a *Association) TakeDeliverable() []Message {
	out := a.readyMsgs
	a.readyMsgs = nil
	return out
}

// HandleChunk dispatches one decoded chunk to the appropriate handler.
// It is called once per chunk in arrival order for every packet the
// Engine routes to this association (spec.md §5 ordering guarantee a).
func (a *Association) HandleChunk(c chunk.Raw) error {
	switch c.Type {
	case chunk.TypeInitAck:
		return a.handleInitAck(c)
	case chunk.TypeCookieAck:
		return a.handleCookieAck()
	case chunk.TypeData:
		return a.handleData(c)
	case chunk.TypeSack:
		return a.handleSack(c)
	case chunk.TypeHeartbeat:
		return a.handleHeartbeat(c)
	case chunk.TypeHeartbeatAck:
		a.hbOutstanding = false
		a.hbMisses = 0
		return nil
	case chunk.TypeShutdown:
		return a.handleShutdown(c)
	case chunk.TypeShutdownAck:
		return a.handleShutdownAck()
	case chunk.TypeShutdownComplete:
		return a.handleShutdownComplete()
	case chunk.TypeAbort:
		return a.handleAbort()
	case chunk.TypeError:
		return nil
	default:
		a.reportUnrecognized(c)
		return nil
	}
}

// reportUnrecognized emits an ERROR for an unrecognised chunk whose
// action asks for a report. The rest of the packet is processed in
// every case, including for ActionStop and ActionStopReport.
func (a *Association) reportUnrecognized(c chunk.Raw) {
	switch c.Type.UnrecognizedAction() {
	case chunk.ActionStopReport, chunk.ActionSkipReport:
		a.out = append(a.out, chunk.EncodeError(chunk.CauseProtocolViolation, "unrecognized chunk type"))
	}
}

func (a *Association) handleInitAck(c chunk.Raw) error {
	if a.State != StateCookieWait {
		return nil
	}
	in, err := chunk.DecodeInit(c.Value)
	if err != nil || len(in.Cookie) == 0 {
		return nil
	}
	a.PeerTag = in.InitiateTag
	a.peerInitialTSN = in.InitialTSN
	a.recvCumTSN = in.InitialTSN - 1
	a.peerRwnd = in.AdvertisedRwnd
	if in.OutboundStreams < a.cfg.InboundStreams {
		a.cfg.InboundStreams = in.OutboundStreams
	}
	if in.InboundStreams < a.cfg.OutboundStreams {
		a.cfg.OutboundStreams = in.InboundStreams
	}
	for i := uint16(0); i < a.cfg.InboundStreams; i++ {
		if _, ok := a.streamsIn[i]; !ok {
			a.streamsIn[i] = newStreamIn()
		}
	}

	a.cookie = in.Cookie
	a.t1.cancel()
	a.out = append(a.out, chunk.EncodeCookieEcho(a.cookie))
	a.t1.arm(time.Now(), a.cfg.RTOInitial)
	a.State = StateCookieEchoed
	return nil
}

func (a *Association) handleCookieAck() error {
	if a.State != StateCookieEchoed {
		return nil
	}
	a.t1.cancel()
	a.State = StateEstablished
	if a.stats != nil {
		a.stats.AssocsEstablished.Inc()
	}
	return nil
}

func (a *Association) handleHeartbeat(c chunk.Raw) error {
	hb, err := chunk.DecodeHeartbeat(c)
	if err != nil {
		return nil
	}
	a.out = append(a.out, chunk.EncodeHeartbeatAck(hb))
	return nil
}

// abort emits an ABORT chunk, tears down all queues and transitions to
// CLOSED. Per spec.md §7 this is the terminal response to a fatal
// protocol-level error.
func (a *Association) abort(cause chunk.CauseCode, reason string) {
	a.out = append(a.out, chunk.Abort(cause, reason))
	a.State = StateClosed
	a.sendQueue = nil
	a.inFlight = nil
	a.readyMsgs = nil
	a.t1.cancel()
	a.t2.cancel()
	a.t3.cancel()
	a.hb.cancel()
	if a.stats != nil {
		a.stats.AssocsAborted.Inc()
	}
}

func (a *Association) handleAbort() error {
	a.State = StateClosed
	a.sendQueue = nil
	a.inFlight = nil
	a.t1.cancel()
	a.t2.cancel()
	a.t3.cancel()
	a.hb.cancel()
	if a.stats != nil {
		a.stats.AssocsAborted.Inc()
	}
	return nil
}

// Tick drives every armed timer against now: INIT/COOKIE-ECHO
// retransmission, T3-rtx retransmission with congestion backoff,
// T2-shutdown retransmission, heartbeat emission, and delayed-SACK
// flush. The Engine calls this once per association per wakeup.
func (a *Association) Tick(now time.Time) {
	if a.State == StateClosed {
		return
	}

	if a.t1.expired(now) {
		a.onT1Expire(now)
	}
	if a.t3.expired(now) {
		a.onT3Expire(now)
	}
	if a.t2.expired(now) {
		a.onT2Expire(now)
	}
	if a.sackTimer.expired(now) {
		a.flushSack()
	}
	if a.State == StateEstablished && !a.hb.armed {
		a.hb.arm(now, a.cfg.HeartbeatInterval)
	}
	if a.hb.expired(now) {
		if a.hbOutstanding {
			a.hbMisses++
			if a.hbMisses > a.cfg.PathMaxRetransmits {
				a.abort(chunk.CauseProtocolViolation, "path heartbeat retransmit limit exceeded")
				return
			}
		}
		a.out = append(a.out, chunk.EncodeHeartbeat(chunk.Heartbeat{Info: []byte(a.ID.String())}))
		a.hbOutstanding = true
		a.hb.arm(now, a.cfg.HeartbeatInterval)
	}
}

func (a *Association) onT1Expire(now time.Time) {
	retries := a.t1.backoff(now, a.cfg.RTOMax)
	if retries > a.cfg.MaxInitRetransmits {
		a.abort(chunk.CauseProtocolViolation, "handshake retransmit limit exceeded")
		return
	}
	switch a.State {
	case StateCookieWait:
		a.out = append(a.out, chunk.EncodeInit(chunk.Init{
			InitiateTag:     a.LocalTag,
			AdvertisedRwnd:  a.rwnd,
			OutboundStreams: a.cfg.OutboundStreams,
			InboundStreams:  a.cfg.InboundStreams,
			InitialTSN:      a.localInitialTSN,
		}))
	case StateCookieEchoed:
		a.out = append(a.out, chunk.EncodeCookieEcho(a.cookie))
	default:
		a.t1.cancel()
	}
}

func (a *Association) onT2Expire(now time.Time) {
	retries := a.t2.backoff(now, a.cfg.RTOMax)
	if retries > a.cfg.AssocMaxRetransmits {
		a.abort(chunk.CauseProtocolViolation, "shutdown retransmit limit exceeded")
		return
	}
	switch a.State {
	case StateShutdownSent:
		a.out = append(a.out, chunk.EncodeShutdown(a.recvCumTSN))
	case StateShutdownAckSent:
		a.out = append(a.out, chunk.EncodeShutdownAck())
	default:
		a.t2.cancel()
	}
}
