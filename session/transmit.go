package session

import (
	"sort"
	"time"

	"github.com/webrtc-sctp/sctp/chunk"
)

// outChunk is one DATA fragment the send side has assigned a TSN to,
// whether still queued or already in flight.
type outChunk struct {
	tsn           uint32
	stream        uint16
	ssn           uint16
	ppid          uint32
	flags         chunk.Flags
	payload       []byte
	sentAt        time.Time
	retransmitted bool
}

// dataOverhead is the common header plus DATA chunk header consumed
// out of every MTU, per spec.md §4.3 "Data transmission".
const dataOverhead = 12 + 4 + 12

// Send fragments data into one or more DATA chunks and queues them for
// transmission, assigning TSNs (and, for ordered messages, the next
// SSN on stream) at enqueue time. It returns ErrBadState outside
// ESTABLISHED and ErrSendQueueFull once the queue exceeds its
// configured high-water mark, per spec.md §4.4.
func (a *Association) Send(stream uint16, ppid uint32, ordered bool, data []byte) error {
	if a.State != StateEstablished {
		return ErrBadState
	}
	if a.sendQueueBytes+len(data) > a.cfg.SendQueueHighWater {
		return ErrSendQueueFull
	}

	maxPayload := a.cfg.MTU - dataOverhead
	if maxPayload < 1 {
		maxPayload = 1
	}

	var ssn uint16
	if ordered {
		ssn = a.streamsOut[stream]
		a.streamsOut[stream]++
	}

	flagsBase := chunk.Flags(0)
	if !ordered {
		flagsBase |= chunk.FlagUnordered
	}

	offset := 0
	for offset < len(data) || offset == 0 {
		end := offset + maxPayload
		if end > len(data) {
			end = len(data)
		}
		flags := flagsBase
		if offset == 0 {
			flags |= chunk.FlagBegin
		}
		if end == len(data) {
			flags |= chunk.FlagEnd
		}

		oc := &outChunk{
			tsn:     a.localNextTSN,
			stream:  stream,
			ssn:     ssn,
			ppid:    ppid,
			flags:   flags,
			payload: append([]byte(nil), data[offset:end]...),
		}
		a.localNextTSN++
		a.sendQueue = append(a.sendQueue, oc)
		a.sendQueueBytes += len(oc.payload)

		offset = end
		if len(data) == 0 {
			break
		}
	}

	a.pump(time.Now())
	return nil
}

// pump moves chunks from sendQueue to inFlight while both cwnd and the
// peer's advertised rwnd allow, bounded by Max.Burst chunks per call,
// per spec.md §4.3 "Data transmission". A peerRwnd of zero does not
// limit sending: it is not distinguished from a window not yet learnt
// (the passive side has none until the first SACK).
func (a *Association) pump(now time.Time) {
	flightSize := uint32(0)
	for _, oc := range a.inFlight {
		flightSize += uint32(len(oc.payload))
	}

	burst := 0
	for burst < a.cfg.MaxBurst && len(a.sendQueue) > 0 {
		next := a.sendQueue[0]
		size := uint32(len(next.payload))
		if flightSize+size > a.cwnd {
			break
		}
		if a.peerRwnd > 0 && flightSize+size > a.peerRwnd {
			break
		}

		a.sendQueue = a.sendQueue[1:]
		a.sendQueueBytes -= len(next.payload)
		next.sentAt = now
		a.inFlight = append(a.inFlight, next)
		a.out = append(a.out, chunk.EncodeData(chunk.Data{
			TSN: next.tsn, Stream: next.stream, SSN: next.ssn,
			PPID: next.ppid, Flags: next.flags, Data: next.payload,
		}))
		flightSize += size
		burst++
	}

	if len(a.inFlight) > 0 && !a.t3.armed {
		a.t3.arm(now, a.rto)
	}
}

// handleData folds one inbound DATA chunk into receive-side TSN
// bookkeeping and the addressed stream's reassembly state.
func (a *Association) handleData(c chunk.Raw) error {
	d, err := chunk.DecodeData(c)
	if err != nil {
		return nil // malformed chunk value; counted and dropped, not fatal
	}

	if !tsnAfter(d.TSN, a.recvCumTSN) {
		a.recvDups = append(a.recvDups, d.TSN)
		a.sackImmediate = true
		a.scheduleSack(time.Now())
		return nil
	}
	if _, dup := a.recvGaps[d.TSN]; dup {
		a.recvDups = append(a.recvDups, d.TSN)
		a.sackImmediate = true
		a.scheduleSack(time.Now())
		return nil
	}

	s, ok := a.streamsIn[d.Stream]
	if !ok {
		a.abort(chunk.CauseInvalidStreamID, "data for unknown stream")
		return ErrBadState
	}

	outOfOrder := d.TSN != a.recvCumTSN+1

	msgs, rerr := s.receive(d)
	if rerr != nil {
		a.abort(chunk.CauseProtocolViolation, rerr.Error())
		return rerr
	}
	a.readyMsgs = append(a.readyMsgs, msgs...)

	if d.TSN == a.recvCumTSN+1 {
		a.recvCumTSN = d.TSN
		for {
			if _, ok := a.recvGaps[a.recvCumTSN+1]; !ok {
				break
			}
			delete(a.recvGaps, a.recvCumTSN+1)
			a.recvCumTSN++
		}
	} else {
		a.recvGaps[d.TSN] = struct{}{}
	}

	if outOfOrder {
		a.sackImmediate = true
	}
	a.scheduleSack(time.Now())
	return nil
}

// scheduleSack sends a SACK at once when one is marked immediate or a
// delayed SACK is already pending (so at least every second DATA chunk
// is acknowledged without delay); otherwise it arms the SackDelay
// timer.
func (a *Association) scheduleSack(now time.Time) {
	if a.sackImmediate || a.sackTimer.armed {
		a.flushSack()
		return
	}
	a.sackTimer.arm(now, a.cfg.SackDelay)
}

// flushSack emits a SACK reflecting the current cumulative TSN ack
// point, gap blocks and duplicate reports, then clears pending SACK
// state.
func (a *Association) flushSack() {
	a.out = append(a.out, chunk.EncodeSack(chunk.Sack{
		CumTSNAck:     a.recvCumTSN,
		Rwnd:          a.rwnd,
		GapBlocks:     a.gapBlocks(),
		DuplicateTSNs: a.recvDups,
	}))
	a.recvDups = nil
	a.sackImmediate = false
	a.sackTimer.cancel()
}

// gapBlocks coalesces recvGaps into contiguous RFC 4960 §3.3.4 ranges
// relative to recvCumTSN.
func (a *Association) gapBlocks() []chunk.GapBlock {
	if len(a.recvGaps) == 0 {
		return nil
	}
	tsns := make([]uint32, 0, len(a.recvGaps))
	for tsn := range a.recvGaps {
		tsns = append(tsns, tsn)
	}
	sort.Slice(tsns, func(i, j int) bool { return tsnAfter(tsns[j], tsns[i]) })

	var blocks []chunk.GapBlock
	for _, tsn := range tsns {
		off := uint16(tsn - a.recvCumTSN)
		if len(blocks) > 0 && blocks[len(blocks)-1].End == off-1 {
			blocks[len(blocks)-1].End = off
			continue
		}
		blocks = append(blocks, chunk.GapBlock{Start: off, End: off})
	}
	return blocks
}

// handleSack advances the cumulative TSN ack point, retires
// acknowledged DATA, updates the RTT estimate and congestion window,
// and fast-retransmits any DATA reported missing by four consecutive
// SACKs, per spec.md §4.3 "Acknowledgement and retransmission".
func (a *Association) handleSack(c chunk.Raw) error {
	sack, err := chunk.DecodeSack(c.Value)
	if err != nil {
		return nil
	}
	now := time.Now()

	a.retireAcked(sack.CumTSNAck, now)
	a.peerRwnd = sack.Rwnd

	reported := make(map[uint32]bool, len(sack.GapBlocks)*2)
	highest := sack.CumTSNAck // highest TSN any gap block acknowledges
	for _, g := range sack.GapBlocks {
		for tsn := sack.CumTSNAck + uint32(g.Start); tsn != sack.CumTSNAck+uint32(g.End)+1; tsn++ {
			reported[tsn] = true
		}
		if end := sack.CumTSNAck + uint32(g.End); tsnAfter(end, highest) {
			highest = end
		}
	}

	for _, oc := range a.inFlight {
		if reported[oc.tsn] {
			delete(a.missCounts, oc.tsn)
			continue
		}
		if !tsnAfter(highest, oc.tsn) {
			continue // not reported missing: no gap block lies beyond it
		}
		a.missCounts[oc.tsn]++
		if a.missCounts[oc.tsn] == 4 {
			a.retransmit(oc, now)
			a.missCounts[oc.tsn] = 0
			a.ssthresh = max(a.cwnd/2, uint32(4*a.cfg.MTU))
			a.cwnd = a.ssthresh
			if a.stats != nil {
				a.stats.FastRetransmits.Inc()
			}
		}
	}

	a.pump(now)
	a.tryFinishShutdown(now)
	return nil
}

// retireAcked removes every in-flight chunk at or below newAck,
// advances cumTSNAck, samples RTT from the oldest non-retransmitted
// retirement, and grows cwnd per RFC 4960 §7 slow-start/congestion
// avoidance.
func (a *Association) retireAcked(newAck uint32, now time.Time) {
	if !tsnAfter(newAck, a.cumTSNAck) && newAck != a.cumTSNAck {
		return
	}
	a.cumTSNAck = newAck

	var ackedBytes uint32
	var sampled bool
	var sample time.Duration

	kept := a.inFlight[:0]
	for _, oc := range a.inFlight {
		if tsnAfter(oc.tsn, newAck) {
			kept = append(kept, oc)
			continue
		}
		ackedBytes += uint32(len(oc.payload))
		if !oc.retransmitted && !sampled {
			sample = now.Sub(oc.sentAt)
			sampled = true
		}
		delete(a.missCounts, oc.tsn)
	}
	a.inFlight = kept

	if sampled {
		a.updateRTO(sample)
	}
	if ackedBytes > 0 {
		if a.cwnd <= a.ssthresh {
			a.cwnd += min(ackedBytes, uint32(a.cfg.MTU)) // slow start
		} else {
			inc := uint32(a.cfg.MTU) * uint32(a.cfg.MTU) / a.cwnd
			if inc == 0 {
				inc = 1
			}
			a.cwnd += inc // congestion avoidance
		}
	}

	if len(a.inFlight) == 0 {
		a.t3.cancel()
	} else if a.t3.armed {
		a.t3.arm(now, a.rto)
	}
}

// updateRTO applies the Jacobson/Karels smoothing of RFC 6298.
func (a *Association) updateRTO(sample time.Duration) {
	if a.srtt == 0 {
		a.srtt = sample
		a.rttvar = sample / 2
	} else {
		delta := sample - a.srtt
		if delta < 0 {
			delta = -delta
		}
		a.rttvar = (3*a.rttvar + delta) / 4
		a.srtt = (7*a.srtt + sample) / 8
	}
	rto := a.srtt + 4*a.rttvar
	a.rto = max(a.cfg.RTOMin, min(a.cfg.RTOMax, rto))
}

func (a *Association) retransmit(oc *outChunk, now time.Time) {
	a.out = append(a.out, chunk.EncodeData(chunk.Data{
		TSN: oc.tsn, Stream: oc.stream, SSN: oc.ssn,
		PPID: oc.ppid, Flags: oc.flags, Data: oc.payload,
	}))
	oc.retransmitted = true
	oc.sentAt = now
	if a.stats != nil {
		a.stats.ChunksRetransmitted.Inc()
	}
}

// onT3Expire retransmits the earliest outstanding DATA, halves
// ssthresh, collapses cwnd to one MTU, and doubles RTO, per spec.md
// §4.3.
func (a *Association) onT3Expire(now time.Time) {
	if len(a.inFlight) == 0 {
		a.t3.cancel()
		return
	}
	retries := a.t3.backoff(now, a.cfg.RTOMax)
	a.rto = a.t3.rto
	if retries > a.cfg.AssocMaxRetransmits {
		a.abort(chunk.CauseProtocolViolation, "retransmission limit exceeded")
		return
	}

	a.ssthresh = max(a.cwnd/2, uint32(4*a.cfg.MTU))
	a.cwnd = uint32(a.cfg.MTU)
	a.retransmit(a.inFlight[0], now)
}

// Shutdown begins the orderly shutdown sequence of spec.md §4.3: once
// both queues drain, SHUTDOWN is emitted and T2-shutdown armed.
func (a *Association) Shutdown() error {
	switch a.State {
	case StateEstablished:
		a.State = StateShutdownPending
	case StateShutdownPending, StateShutdownSent, StateShutdownAckSent, StateShutdownReceived:
		// already shutting down
	default:
		return ErrBadState
	}
	a.tryFinishShutdown(time.Now())
	return nil
}

// tryFinishShutdown advances a draining association once both queues
// are empty: StateShutdownPending emits SHUTDOWN and waits for the
// peer's ack, while StateShutdownReceived (this side had pending data
// when the peer's SHUTDOWN arrived) emits SHUTDOWN-ACK directly, per
// spec.md §4.3's requirement that both sides drain before acking.
func (a *Association) tryFinishShutdown(now time.Time) {
	if len(a.sendQueue) != 0 || len(a.inFlight) != 0 {
		return
	}
	switch a.State {
	case StateShutdownPending:
		a.out = append(a.out, chunk.EncodeShutdown(a.recvCumTSN))
		a.State = StateShutdownSent
		a.t2.arm(now, a.cfg.RTOInitial)
	case StateShutdownReceived:
		a.out = append(a.out, chunk.EncodeShutdownAck())
		a.State = StateShutdownAckSent
		a.t2.arm(now, a.cfg.RTOInitial)
	}
}

func (a *Association) handleShutdown(c chunk.Raw) error {
	cumAck, err := chunk.DecodeShutdown(c.Value)
	if err != nil {
		return nil
	}
	now := time.Now()
	a.retireAcked(cumAck, now)

	switch a.State {
	case StateEstablished, StateShutdownPending:
		a.State = StateShutdownReceived
		a.tryFinishShutdown(now)
	case StateShutdownSent:
		a.out = append(a.out, chunk.EncodeShutdownAck())
		a.State = StateShutdownAckSent
		a.t2.arm(now, a.cfg.RTOInitial)
	}
	return nil
}

func (a *Association) handleShutdownAck() error {
	switch a.State {
	case StateShutdownSent, StateShutdownAckSent:
		a.t2.cancel()
		a.out = append(a.out, chunk.EncodeShutdownComplete())
		a.State = StateClosed
		if a.stats != nil {
			a.stats.AssocsClosed.Inc()
		}
	}
	return nil
}

func (a *Association) handleShutdownComplete() error {
	switch a.State {
	case StateShutdownAckSent, StateShutdownSent:
		a.t2.cancel()
		a.State = StateClosed
		if a.stats != nil {
			a.stats.AssocsClosed.Inc()
		}
	}
	return nil
}

// tsnAfter reports whether a follows b in the 32-bit modular TSN
// space, per RFC 4960 §1.6.
func tsnAfter(a, b uint32) bool {
	return int32(a-b) > 0
}
