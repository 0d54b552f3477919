package session

import (
	"sort"

	"github.com/webrtc-sctp/sctp/chunk"
)

// fragment is one DATA chunk held pending reassembly of its message.
type fragment struct {
	tsn  uint32
	data []byte
}

// reassembly collects the fragments of a single message, ordered or
// unordered, per spec.md §4.4 "Fragmentation and reassembly".
type reassembly struct {
	parts []fragment
	begun bool
	ppid  uint32
}

func (r *reassembly) assemble() []byte {
	sort.Slice(r.parts, func(i, j int) bool { return r.parts[i].tsn < r.parts[j].tsn })
	var n int
	for _, f := range r.parts {
		n += len(f.data)
	}
	buf := make([]byte, 0, n)
	for _, f := range r.parts {
		buf = append(buf, f.data...)
	}
	return buf
}

// streamIn is the receive-side state of one inbound stream. Ordered
// messages complete in any SSN order but are held in ready until
// nextSSN catches up to them, so delivery to the application is
// strictly ordered as RFC 4960 §6.2 requires; unordered messages
// deliver as soon as their fragments are complete.
type streamIn struct {
	nextSSN uint16
	windowN int // how many SSNs ahead of nextSSN may be in flight at once

	inProgress map[uint16]*reassembly // ordered reassembly not yet complete
	ready      map[uint16]Message     // ordered, complete, awaiting its turn

	unord []*reassembly // unordered reassemblies in flight
}

func newStreamIn() *streamIn {
	return &streamIn{
		windowN:    4096,
		inProgress: make(map[uint16]*reassembly),
		ready:      make(map[uint16]Message),
	}
}

// Message is a fully reassembled payload ready for delivery.
type Message struct {
	Stream uint16
	PPID   uint32
	Data   []byte
}

// receive folds one DATA chunk into the stream's reassembly state and
// returns every message that becomes deliverable as a result -- zero,
// one, or (when an SSN gap closes) several buffered messages at once.
func (s *streamIn) receive(d chunk.Data) ([]Message, error) {
	if d.Unordered() {
		m, ok, err := s.receiveUnordered(d)
		if err != nil || !ok {
			return nil, err
		}
		return []Message{m}, nil
	}
	return s.receiveOrdered(d)
}

func (s *streamIn) receiveOrdered(d chunk.Data) ([]Message, error) {
	if ssnBefore(d.SSN, s.nextSSN) {
		return nil, ErrUnexpectedSSN
	}
	if int(ssnDistance(d.SSN, s.nextSSN)) >= s.windowN {
		return nil, ErrUnexpectedSSN
	}

	r, exists := s.inProgress[d.SSN]
	_, alreadyReady := s.ready[d.SSN]

	switch {
	case d.Begin() && d.End():
		if exists || alreadyReady {
			return nil, ErrUnexpectedBeginningFragment
		}
		s.ready[d.SSN] = Message{Stream: d.Stream, PPID: d.PPID, Data: append([]byte(nil), d.Data...)}

	case d.Begin():
		if exists || alreadyReady {
			return nil, ErrUnexpectedBeginningFragment
		}
		s.inProgress[d.SSN] = &reassembly{parts: []fragment{{d.TSN, d.Data}}, begun: true, ppid: d.PPID}
		return nil, nil

	default: // middle or end fragment
		if !exists || !r.begun {
			return nil, ErrExpectedBeginningFragment
		}
		r.parts = append(r.parts, fragment{d.TSN, d.Data})
		if !d.End() {
			return nil, nil
		}
		delete(s.inProgress, d.SSN)
		s.ready[d.SSN] = Message{Stream: d.Stream, PPID: r.ppid, Data: r.assemble()}
	}

	return s.drain(), nil
}

// drain pops every contiguous message starting at nextSSN out of ready.
func (s *streamIn) drain() []Message {
	var out []Message
	for {
		m, ok := s.ready[s.nextSSN]
		if !ok {
			break
		}
		delete(s.ready, s.nextSSN)
		out = append(out, m)
		s.nextSSN++
	}
	return out
}

// receiveUnordered reassembles by TSN contiguity: an unordered
// message's fragments share no SSN, so the beginning fragment opens a
// reassembly that every later fragment for that message must chain
// onto by TSN, per RFC 4960 §6.9.
func (s *streamIn) receiveUnordered(d chunk.Data) (Message, bool, error) {
	if d.Begin() && d.End() {
		return Message{Stream: d.Stream, PPID: d.PPID, Data: append([]byte(nil), d.Data...)}, true, nil
	}

	if d.Begin() {
		s.unord = append(s.unord, &reassembly{parts: []fragment{{d.TSN, d.Data}}, begun: true, ppid: d.PPID})
		return Message{}, false, nil
	}

	for i, r := range s.unord {
		last := r.parts[len(r.parts)-1]
		if last.tsn+1 != d.TSN {
			continue
		}
		r.parts = append(r.parts, fragment{d.TSN, d.Data})
		if !d.End() {
			return Message{}, false, nil
		}
		s.unord = append(s.unord[:i], s.unord[i+1:]...)
		return Message{Stream: d.Stream, PPID: r.ppid, Data: r.assemble()}, true, nil
	}
	return Message{}, false, ErrExpectedBeginningFragment
}

// ssnBefore reports whether a precedes b in the 16-bit modular SSN
// space, treating the window as half the space wide as RFC 4960 §1.6
// prescribes for TSN (applied identically to SSN).
func ssnBefore(a, b uint16) bool {
	return int16(a-b) < 0
}

func ssnDistance(a, b uint16) uint16 {
	return a - b
}
