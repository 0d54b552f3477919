package chunk

import "encoding/binary"

// GapBlock reports a range of TSNs received out of order, relative to
// the cumulative TSN ack point carried alongside it in a Sack. Both
// bounds are offsets, per RFC 4960 §3.3.4.
type GapBlock struct {
	Start uint16 // first TSN of the gap, as cumTSNAck+Start
	End   uint16 // last TSN of the gap, as cumTSNAck+End
}

// Sack is the decoded value of a SACK chunk: cumulative TSN ack point,
// advertised receiver window, and the gap/duplicate reports needed for
// fast retransmit (spec.md §4.3 "Acknowledgement and retransmission").
type Sack struct {
	CumTSNAck      uint32
	Rwnd           uint32
	GapBlocks      []GapBlock
	DuplicateTSNs  []uint32
}

const sackFixedLen = 12

// DecodeSack parses the value of a SACK chunk.
func DecodeSack(value []byte) (Sack, error) {
	if len(value) < sackFixedLen {
		return Sack{}, ErrInvalidPacket
	}
	s := Sack{
		CumTSNAck: binary.BigEndian.Uint32(value[0:4]),
		Rwnd:      binary.BigEndian.Uint32(value[4:8]),
	}
	numGaps := int(binary.BigEndian.Uint16(value[8:10]))
	numDups := int(binary.BigEndian.Uint16(value[10:12]))

	offset := sackFixedLen
	need := numGaps*4 + numDups*4
	if len(value)-offset < need {
		return Sack{}, ErrInvalidPacket
	}

	for i := 0; i < numGaps; i++ {
		s.GapBlocks = append(s.GapBlocks, GapBlock{
			Start: binary.BigEndian.Uint16(value[offset : offset+2]),
			End:   binary.BigEndian.Uint16(value[offset+2 : offset+4]),
		})
		offset += 4
	}
	for i := 0; i < numDups; i++ {
		s.DuplicateTSNs = append(s.DuplicateTSNs, binary.BigEndian.Uint32(value[offset:offset+4]))
		offset += 4
	}
	return s, nil
}

// EncodeSack renders a SACK chunk.
func EncodeSack(s Sack) Raw {
	value := make([]byte, sackFixedLen, sackFixedLen+8*(len(s.GapBlocks)+len(s.DuplicateTSNs)))
	binary.BigEndian.PutUint32(value[0:4], s.CumTSNAck)
	binary.BigEndian.PutUint32(value[4:8], s.Rwnd)
	binary.BigEndian.PutUint16(value[8:10], uint16(len(s.GapBlocks)))
	binary.BigEndian.PutUint16(value[10:12], uint16(len(s.DuplicateTSNs)))

	for _, g := range s.GapBlocks {
		var b [4]byte
		binary.BigEndian.PutUint16(b[0:2], g.Start)
		binary.BigEndian.PutUint16(b[2:4], g.End)
		value = append(value, b[:]...)
	}
	for _, d := range s.DuplicateTSNs {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], d)
		value = append(value, b[:]...)
	}
	return Raw{Type: TypeSack, Value: value}
}
