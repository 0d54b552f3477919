package session

import (
	"bytes"
	"testing"

	"github.com/webrtc-sctp/sctp/chunk"
)

func TestReassemblyOrderedSingleChunk(t *testing.T) {
	s := newStreamIn()
	d := chunk.Data{TSN: 1, Stream: 0, SSN: 0, PPID: 50, Flags: chunk.FlagBegin | chunk.FlagEnd, Data: []byte("hello")}

	msgs, err := s.receive(d)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(msgs) != 1 || !bytes.Equal(msgs[0].Data, []byte("hello")) {
		t.Fatalf("got %+v", msgs)
	}
}

func TestReassemblyOrderedFragments(t *testing.T) {
	s := newStreamIn()
	frags := []chunk.Data{
		{TSN: 1, SSN: 0, Flags: chunk.FlagBegin, Data: []byte("he")},
		{TSN: 2, SSN: 0, Flags: 0, Data: []byte("ll")},
		{TSN: 3, SSN: 0, Flags: chunk.FlagEnd, Data: []byte("o")},
	}
	for i, d := range frags {
		msgs, err := s.receive(d)
		if err != nil {
			t.Fatalf("fragment %d: %v", i, err)
		}
		if i < len(frags)-1 {
			if len(msgs) != 0 {
				t.Fatalf("fragment %d: expected no message yet, got %+v", i, msgs)
			}
		} else {
			if len(msgs) != 1 || string(msgs[0].Data) != "hello" {
				t.Fatalf("final fragment: got %+v", msgs)
			}
		}
	}
}

func TestReassemblyOrderedOutOfOrderSSNBuffers(t *testing.T) {
	s := newStreamIn()

	msgs, err := s.receive(chunk.Data{TSN: 1, SSN: 1, Flags: chunk.FlagBegin | chunk.FlagEnd, Data: []byte("second")})
	if err != nil {
		t.Fatalf("receive SSN 1: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("SSN 1 arrived before SSN 0 was delivered: got %+v", msgs)
	}

	msgs, err = s.receive(chunk.Data{TSN: 2, SSN: 0, Flags: chunk.FlagBegin | chunk.FlagEnd, Data: []byte("first")})
	if err != nil {
		t.Fatalf("receive SSN 0: %v", err)
	}
	if len(msgs) != 2 || string(msgs[0].Data) != "first" || string(msgs[1].Data) != "second" {
		t.Fatalf("got %+v, want [first second] delivered together", msgs)
	}
}

func TestReassemblyUnexpectedMiddleFragment(t *testing.T) {
	s := newStreamIn()
	_, err := s.receive(chunk.Data{TSN: 1, SSN: 0, Flags: 0, Data: []byte("x")})
	if err != ErrExpectedBeginningFragment {
		t.Fatalf("got %v, want ErrExpectedBeginningFragment", err)
	}
}

func TestReassemblyDuplicateBeginFragment(t *testing.T) {
	s := newStreamIn()
	if _, err := s.receive(chunk.Data{TSN: 1, SSN: 0, Flags: chunk.FlagBegin, Data: []byte("a")}); err != nil {
		t.Fatalf("first begin: %v", err)
	}
	if _, err := s.receive(chunk.Data{TSN: 2, SSN: 0, Flags: chunk.FlagBegin, Data: []byte("b")}); err != ErrUnexpectedBeginningFragment {
		t.Fatalf("got %v, want ErrUnexpectedBeginningFragment", err)
	}
}

func TestReassemblyUnorderedFragments(t *testing.T) {
	s := newStreamIn()

	begin := chunk.Data{TSN: 10, Flags: chunk.FlagBegin | chunk.FlagUnordered, Data: []byte("un")}
	msgs, err := s.receive(begin)
	if err != nil || len(msgs) != 0 {
		t.Fatalf("begin: msgs=%+v err=%v", msgs, err)
	}

	mid := chunk.Data{TSN: 11, Flags: chunk.FlagUnordered, Data: []byte("ord")}
	msgs, err = s.receive(mid)
	if err != nil || len(msgs) != 0 {
		t.Fatalf("middle: msgs=%+v err=%v", msgs, err)
	}

	end := chunk.Data{TSN: 12, Flags: chunk.FlagEnd | chunk.FlagUnordered, Data: []byte("ered")}
	msgs, err = s.receive(end)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if len(msgs) != 1 || string(msgs[0].Data) != "unordered" {
		t.Fatalf("got %+v, want [unordered]", msgs)
	}
}
