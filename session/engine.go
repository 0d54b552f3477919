package session

import (
	"net"
	"time"

	"github.com/webrtc-sctp/sctp/chunk"
	"github.com/webrtc-sctp/sctp/llp"
)

// tagKey demultiplexes inbound packets to an Association, per spec.md
// §4.5.
type tagKey struct {
	peer string
	tag  uint32
}

// CommandKind selects the operation a Command asks the Engine to
// perform.
type CommandKind int

// Command kinds accepted on Engine.Commands, per spec.md §4.5 (ii).
const (
	CmdConnect CommandKind = iota
	CmdListen
	CmdCloseListener
	CmdSend
	CmdRecvPoll
	CmdShutdown
	CmdAbort
)

// Command is a request posted to the Engine from a handle, bridging a
// foreign thread into the single-goroutine executor, per spec.md §9
// "Cross-thread handle".
type Command struct {
	Kind CommandKind

	AssocID ID

	Peer      net.Addr
	LocalPort uint16
	PeerPort  uint16

	Stream  uint16
	PPID    uint32
	Ordered bool
	Data    []byte

	Reply chan Reply
}

// Reply carries the Engine's response to one Command.
type Reply struct {
	Err      error
	AssocID  ID
	State    State
	Listener *Listener
	Messages []Message
}

// Listener accepts inbound associations completed on one local SCTP
// port, per spec.md §4.5 "The listener is a first-class entity
// registered on a local SCTP port".
type Listener struct {
	Port   uint16
	accept chan ID
	closed chan struct{}
}

// Accept blocks until an association completes its handshake on this
// listener, or the listener is closed.
func (l *Listener) Accept() (ID, error) {
	select {
	case id, ok := <-l.accept:
		if !ok {
			return ID{}, ErrClosed
		}
		return id, nil
	case <-l.closed:
		return ID{}, ErrClosed
	}
}

// Engine is the single cooperative task of spec.md §4.5: it owns the
// lower layer, demultiplexes inbound packets to associations by (peer
// address, verification tag), drains the command channel, and drives
// every association's timer set. No association field is touched from
// any other goroutine.
type Engine struct {
	ll      llp.LowerLayer
	cfg     Config
	stats   *Stats
	log     Logger
	cookies *cookieSigner

	byTag map[tagKey]*Association
	byID  map[ID]*Association

	listeners map[uint16]*Listener

	commands chan Command

	pollInterval time.Duration
}

// NewEngine constructs an Engine over ll. cfg supplies the defaults
// every new Association inherits; stats may be nil and log may be the
// zero Logger.
func NewEngine(ll llp.LowerLayer, cfg Config, stats *Stats, log Logger) *Engine {
	cfg = cfg.checked()
	return &Engine{
		ll:           ll,
		cfg:          cfg,
		stats:        stats,
		log:          log,
		cookies:      newCookieSigner(cfg.ValidCookieLife),
		byTag:        make(map[tagKey]*Association),
		byID:         make(map[ID]*Association),
		listeners:    make(map[uint16]*Listener),
		commands:     make(chan Command, 64),
		pollInterval: 10 * time.Millisecond,
	}
}

// Commands is the bounded channel handles post requests to.
func (e *Engine) Commands() chan<- Command { return e.commands }

// Run drives the engine until stop is closed. It is the sole reader of
// the lower layer and the sole writer of every Association's fields.
func (e *Engine) Run(stop <-chan struct{}) {
	poll := time.NewTicker(e.pollInterval)
	defer poll.Stop()
	rotate := time.NewTicker(e.cfg.ValidCookieLife)
	defer rotate.Stop()

	for {
		select {
		case <-stop:
			e.shutdownAll()
			e.ll.Close()
			e.drainCommands()
			return

		case cmd := <-e.commands:
			e.handleCommand(cmd)

		case <-rotate.C:
			e.cookies.rotate()

		case <-poll.C:
			e.Step(time.Now())
		}
	}
}

// Step runs one quantum of work: drain the lower layer, tick every
// association's timers, flush accumulated outgoing chunks, and reap
// any association that closed this round. Run calls this on every
// poll tick; tests drive it directly to avoid depending on wall-clock
// ticker timing.
func (e *Engine) Step(now time.Time) {
	e.drainLowerLayer()
	for _, a := range e.byID {
		a.Tick(now)
	}
	e.flushOutgoing()
	e.reap()
}

func (e *Engine) drainLowerLayer() {
	for {
		dg, err := e.ll.Recv()
		if err != nil {
			return
		}
		if e.stats != nil {
			e.stats.PacketsIn.Inc()
		}
		pkt, err := chunk.Decode(dg.Buf)
		if err != nil {
			if e.stats != nil {
				e.stats.PacketsDropped.Inc()
			}
			continue
		}
		e.dispatch(dg.Peer, pkt)
	}
}

func (e *Engine) dispatch(peer net.Addr, pkt chunk.Packet) {
	e.log.tracePacket("recv", peer.String(), chunkTypeNames(pkt.Chunks))

	if a, ok := e.byTag[tagKey{peer.String(), pkt.VerifTag}]; ok {
		for _, c := range pkt.Chunks {
			a.HandleChunk(c)
		}
		return
	}

	for _, c := range pkt.Chunks {
		switch c.Type {
		case chunk.TypeInit:
			e.handleInboundInit(peer, pkt, c)
			return
		case chunk.TypeCookieEcho:
			e.handleInboundCookieEcho(peer, pkt, c)
			return
		}
	}
	// No matching association and no chunk that could start one:
	// RFC 4960 §8.4 would send an OOTB ABORT; this implementation
	// drops silently, consistent with treating an unmatched packet
	// the same as one addressed to a long-gone association.
}

func (e *Engine) handleInboundInit(peer net.Addr, pkt chunk.Packet, c chunk.Raw) {
	if _, ok := e.listeners[pkt.DestPort]; !ok {
		return
	}
	in, err := chunk.DecodeInit(c.Value)
	if err != nil {
		if e.stats != nil {
			e.stats.PacketsDropped.Inc()
		}
		return
	}

	out := min(in.InboundStreams, e.cfg.OutboundStreams)
	inN := min(in.OutboundStreams, e.cfg.InboundStreams)

	body := cookieBody{
		PeerAddr:        peer.String(),
		InitiateTag:     in.InitiateTag,
		LocalVerifTag:   genTag(),
		PeerInitialTSN:  in.InitialTSN,
		LocalInitialTSN: genInitialTSN(),
		OutboundStreams: out,
		InboundStreams:  inN,
		IssuedUnixNano:  time.Now().UnixNano(),
	}
	cookie := e.cookies.sign(body)

	ack := chunk.EncodeInitAck(chunk.Init{
		InitiateTag:     body.LocalVerifTag,
		AdvertisedRwnd:  uint32(e.cfg.SendQueueHighWater),
		OutboundStreams: out,
		InboundStreams:  inN,
		InitialTSN:      body.LocalInitialTSN,
		Cookie:          cookie,
	})
	e.send(peer, pkt.DestPort, pkt.SourcePort, in.InitiateTag, []chunk.Raw{ack})
}

func (e *Engine) handleInboundCookieEcho(peer net.Addr, pkt chunk.Packet, c chunk.Raw) {
	body, err := e.cookies.verify(chunk.DecodeCookieEcho(c))
	if err != nil {
		if e.stats != nil {
			e.stats.PacketsDropped.Inc()
		}
		return
	}
	if body.PeerAddr != peer.String() {
		return
	}
	if _, exists := e.byTag[tagKey{peer.String(), body.LocalVerifTag}]; exists {
		return // duplicate COOKIE-ECHO for an association already materialised
	}

	l, ok := e.listeners[pkt.DestPort]
	if !ok {
		return
	}

	a := NewPassiveFromCookie(e.cfg, peer, pkt.DestPort, pkt.SourcePort, body, e.stats)
	e.register(a)

	select {
	case l.accept <- a.ID:
	default:
		// accept queue full: materialise anyway (COOKIE-ECHO must not
		// be silently un-acked on retransmission) but drop the
		// notification; a retransmitted COOKIE-ECHO will hit the
		// exists-check above and do nothing further.
	}
}

func (e *Engine) register(a *Association) {
	e.byID[a.ID] = a
	e.byTag[tagKey{a.Peer.String(), a.LocalTag}] = a
}

func (e *Engine) flushOutgoing() {
	for _, a := range e.byID {
		chunks := a.TakeOutgoing()
		if len(chunks) == 0 {
			continue
		}
		e.send(a.Peer, a.LocalPort, a.PeerPort, a.PeerTag, chunks)
	}
}

func (e *Engine) send(peer net.Addr, srcPort, dstPort uint16, verifTag uint32, chunks []chunk.Raw) {
	buf := chunk.Encode(chunk.Packet{SourcePort: srcPort, DestPort: dstPort, VerifTag: verifTag, Chunks: chunks})
	if err := e.ll.Send(peer, buf); err != nil {
		return // ErrBackPressure or transport error: best effort, retried by the owning timer
	}
	e.log.tracePacket("send", peer.String(), chunkTypeNames(chunks))
	if e.stats != nil {
		e.stats.PacketsOut.Inc()
	}
}

func chunkTypeNames(chunks []chunk.Raw) []string {
	names := make([]string, len(chunks))
	for i, c := range chunks {
		names[i] = c.Type.String()
	}
	return names
}

// reap drops any CLOSED association from both lookup tables.
func (e *Engine) reap() {
	for id, a := range e.byID {
		if a.State == StateClosed {
			delete(e.byID, id)
			delete(e.byTag, tagKey{a.Peer.String(), a.LocalTag})
		}
	}
}

func (e *Engine) shutdownAll() {
	for _, a := range e.byID {
		if a.State != StateClosed {
			a.abort(chunk.CauseProtocolViolation, "engine shutting down")
			e.flushOutgoing()
		}
	}
	for _, l := range e.listeners {
		close(l.closed)
	}
}

// drainCommands fails every Command already queued on e.commands with
// Closed, so a handle blocked on <-cmd.Reply is released instead of
// hanging once Run has stopped reading the channel, per spec.md §5's
// engine-shutdown contract.
func (e *Engine) drainCommands() {
	for {
		select {
		case cmd := <-e.commands:
			cmd.Reply <- Reply{Err: ErrClosed}
		default:
			return
		}
	}
}

func (e *Engine) handleCommand(cmd Command) {
	switch cmd.Kind {
	case CmdListen:
		e.cmdListen(cmd)
	case CmdCloseListener:
		e.cmdCloseListener(cmd)
	case CmdConnect:
		e.cmdConnect(cmd)
	case CmdSend:
		e.cmdSend(cmd)
	case CmdRecvPoll:
		e.cmdRecvPoll(cmd)
	case CmdShutdown:
		e.cmdShutdown(cmd)
	case CmdAbort:
		e.cmdAbort(cmd)
	}
}

func (e *Engine) cmdListen(cmd Command) {
	if _, exists := e.listeners[cmd.LocalPort]; exists {
		cmd.Reply <- Reply{Err: ErrBadState}
		return
	}
	l := &Listener{Port: cmd.LocalPort, accept: make(chan ID, 16), closed: make(chan struct{})}
	e.listeners[cmd.LocalPort] = l
	cmd.Reply <- Reply{Listener: l}
}

func (e *Engine) cmdCloseListener(cmd Command) {
	l, ok := e.listeners[cmd.LocalPort]
	if ok {
		delete(e.listeners, cmd.LocalPort)
		close(l.closed)
	}
	cmd.Reply <- Reply{}
}

func (e *Engine) cmdConnect(cmd Command) {
	a := NewActive(e.cfg, cmd.Peer, cmd.LocalPort, cmd.PeerPort, e.stats)
	e.register(a)
	e.flushOutgoing()
	cmd.Reply <- Reply{AssocID: a.ID}
}

func (e *Engine) cmdSend(cmd Command) {
	a, ok := e.byID[cmd.AssocID]
	if !ok {
		cmd.Reply <- Reply{Err: ErrClosed}
		return
	}
	err := a.Send(cmd.Stream, cmd.PPID, cmd.Ordered, cmd.Data)
	e.flushOutgoing()
	cmd.Reply <- Reply{Err: err}
}

func (e *Engine) cmdRecvPoll(cmd Command) {
	a, ok := e.byID[cmd.AssocID]
	if !ok {
		cmd.Reply <- Reply{Err: ErrClosed}
		return
	}
	msgs := a.TakeDeliverable()
	reply := Reply{Messages: msgs, State: a.State}
	if len(msgs) == 0 && a.State == StateClosed {
		reply.Err = ErrClosed
	}
	cmd.Reply <- reply
}

func (e *Engine) cmdShutdown(cmd Command) {
	a, ok := e.byID[cmd.AssocID]
	if !ok {
		cmd.Reply <- Reply{Err: ErrClosed}
		return
	}
	err := a.Shutdown()
	e.flushOutgoing()
	cmd.Reply <- Reply{Err: err}
}

func (e *Engine) cmdAbort(cmd Command) {
	a, ok := e.byID[cmd.AssocID]
	if !ok {
		cmd.Reply <- Reply{Err: ErrClosed}
		return
	}
	a.abort(chunk.CauseUserInitiatedAbort, "abort requested")
	e.flushOutgoing()
	cmd.Reply <- Reply{}
}
