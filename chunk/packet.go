package chunk

import (
	"encoding/binary"
	"hash/crc32"
)

// castagnoliTable is the CRC-32c table, computed once and reused --
// the same discipline the reference pion/sctp implementation uses to
// avoid rebuilding it per packet.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

var zeroChecksum [4]byte

// Packet is a decoded SCTP packet: the common header plus its ordered
// chunk sequence. See spec.md §3 "Packet".
type Packet struct {
	SourcePort uint16
	DestPort   uint16
	VerifTag   uint32
	Chunks     []Raw
}

// Decode parses buf into a Packet. It fails with ErrInvalidPacket if
// buf is shorter than the common header or any chunk's declared
// length is inconsistent with the remaining buffer, and with
// ErrBadChecksum if the CRC-32c does not match. Partial decodes never
// return a packet: on error the returned Packet is the zero value.
func Decode(buf []byte) (Packet, error) {
	if len(buf) < headerLen {
		return Packet{}, ErrInvalidPacket
	}

	theirs := binary.LittleEndian.Uint32(buf[8:12])
	ours := checksum(buf)
	if theirs != ours {
		return Packet{}, ErrBadChecksum
	}

	chunks, err := decodeChunks(buf[headerLen:])
	if err != nil {
		return Packet{}, err
	}

	return Packet{
		SourcePort: binary.BigEndian.Uint16(buf[0:2]),
		DestPort:   binary.BigEndian.Uint16(buf[2:4]),
		VerifTag:   binary.BigEndian.Uint32(buf[4:8]),
		Chunks:     chunks,
	}, nil
}

// Encode serialises p, computing the CRC-32c over the complete form
// with the checksum field held at zero during the pass, then stamping
// the reflected result in place. The result's length is always a
// multiple of 4.
func Encode(p Packet) []byte {
	buf := make([]byte, headerLen, headerLen+64)
	binary.BigEndian.PutUint16(buf[0:2], p.SourcePort)
	binary.BigEndian.PutUint16(buf[2:4], p.DestPort)
	binary.BigEndian.PutUint32(buf[4:8], p.VerifTag)
	// buf[8:12] left zero for the checksum pass.

	for _, c := range p.Chunks {
		buf = encodeChunk(buf, c.Type, c.Flags, c.Value)
	}

	binary.LittleEndian.PutUint32(buf[8:12], checksum(buf))
	return buf
}

// checksum computes CRC-32c over buf as if its checksum field (octets
// 8:12) were zero, per RFC 3309 / RFC 4960 §6.8. Go's crc32.Castagnoli
// already performs the reflected-input/reflected-output form the wire
// format expects, so storing the raw crc32.Checksum result in little-
// endian order reproduces RFC 3309's on-the-wire byte order.
func checksum(buf []byte) uint32 {
	sum := crc32.Update(0, castagnoliTable, buf[0:8])
	sum = crc32.Update(sum, castagnoliTable, zeroChecksum[:])
	if len(buf) > headerLen {
		sum = crc32.Update(sum, castagnoliTable, buf[headerLen:])
	}
	return sum
}
