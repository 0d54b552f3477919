// Package chunk implements the SCTP wire format: the common packet
// header, the chunk/parameter tag-length-value (TLV) discipline, and
// CRC-32c. See RFC 4960 §3.
package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Errors returned by Decode. Per spec.md §7 these are wire-level: the
// caller drops the offending packet and counts it, never surfacing the
// error to an Association.
var (
	// ErrInvalidPacket signals a malformed common header or chunk/
	// parameter TLV: too short, a declared length inconsistent with
	// the remaining buffer, or any other structural defect. Short
	// buffers fold into this uniformly -- spec.md §9 explicitly
	// declines to expose a distinct "underrun" kind.
	ErrInvalidPacket = errors.New("sctp/chunk: invalid packet")

	// ErrBadChecksum signals a CRC-32c mismatch.
	ErrBadChecksum = errors.New("sctp/chunk: bad checksum")
)

// headerLen is the size of the common header in octets.
const headerLen = 12

// Type identifies a chunk kind. The two high-order bits select the
// action a receiver takes for an unrecognised value, per RFC 4960
// §3.2.
type Type uint8

// Chunk types defined by RFC 4960 §3.2 table 2.
const (
	TypeData             Type = 0
	TypeInit             Type = 1
	TypeInitAck          Type = 2
	TypeSack             Type = 3
	TypeHeartbeat        Type = 4
	TypeHeartbeatAck     Type = 5
	TypeAbort            Type = 6
	TypeShutdown         Type = 7
	TypeShutdownAck      Type = 8
	TypeError            Type = 9
	TypeCookieEcho       Type = 10
	TypeCookieAck        Type = 11
	TypeShutdownComplete Type = 14
)

// String returns the IETF token for known types.
func (t Type) String() string {
	switch t {
	case TypeData:
		return "DATA"
	case TypeInit:
		return "INIT"
	case TypeInitAck:
		return "INIT_ACK"
	case TypeSack:
		return "SACK"
	case TypeHeartbeat:
		return "HEARTBEAT"
	case TypeHeartbeatAck:
		return "HEARTBEAT_ACK"
	case TypeAbort:
		return "ABORT"
	case TypeShutdown:
		return "SHUTDOWN"
	case TypeShutdownAck:
		return "SHUTDOWN_ACK"
	case TypeError:
		return "ERROR"
	case TypeCookieEcho:
		return "COOKIE_ECHO"
	case TypeCookieAck:
		return "COOKIE_ACK"
	case TypeShutdownComplete:
		return "SHUTDOWN_COMPLETE"
	default:
		return fmt.Sprintf("type(%#x)", uint8(t))
	}
}

// UnrecognizedAction is the receiver behaviour mandated for a chunk
// whose Type is not understood, derived from its two high-order bits.
type UnrecognizedAction uint8

const (
	// Stop processing the packet and discard it silently.
	ActionStop UnrecognizedAction = iota
	// Stop processing the packet, discard it, and report via ERROR.
	ActionStopReport
	// Skip the chunk and continue processing the packet.
	ActionSkip
	// Skip the chunk, continue, and report via ERROR.
	ActionSkipReport
)

// UnrecognizedAction reports what to do when Type is not understood.
func (t Type) UnrecognizedAction() UnrecognizedAction {
	return UnrecognizedAction(t >> 6)
}

// Flags carries the per-chunk flag octet. Meaning is chunk-specific;
// DATA defines B/E/U here (see data.go).
type Flags uint8

// Raw is a decoded but unparsed chunk: its Type, Flags and Value
// exactly as found on the wire, value already stripped of padding.
// Packet.Chunks yields Raw; callers use DecodeInit, DecodeData, etc.
// to parse the payload of interest.
type Raw struct {
	Type  Type
	Flags Flags
	Value []byte
}

// padLen returns the number of padding octets needed to round n up to
// a 4-octet boundary.
func padLen(n int) int {
	return (4 - n%4) % 4
}

// chunkHeaderLen is the fixed type+flags+length prefix of every chunk.
const chunkHeaderLen = 4

// decodeChunks parses a sequence of chunk TLVs from buf. Trailing
// padding may be absent only for the chunk that ends buf (spec.md
// §4.1 edge case).
func decodeChunks(buf []byte) ([]Raw, error) {
	var out []Raw
	offset := 0
	for offset < len(buf) {
		remaining := len(buf) - offset
		if remaining < chunkHeaderLen {
			return nil, ErrInvalidPacket
		}
		typ := Type(buf[offset])
		flags := Flags(buf[offset+1])
		length := int(binary.BigEndian.Uint16(buf[offset+2:]))
		if length < chunkHeaderLen {
			return nil, ErrInvalidPacket
		}
		valueLen := length - chunkHeaderLen
		if valueLen > remaining-chunkHeaderLen {
			return nil, ErrInvalidPacket
		}
		value := buf[offset+chunkHeaderLen : offset+length]

		out = append(out, Raw{Type: typ, Flags: flags, Value: value})

		chunkEnd := offset + length
		pad := padLen(length)
		if chunkEnd+pad <= len(buf) {
			offset = chunkEnd + pad
		} else {
			// No room left for padding: only acceptable when this
			// chunk is the last thing in the packet (spec.md §4.1).
			if chunkEnd != len(buf) {
				return nil, ErrInvalidPacket
			}
			offset = chunkEnd
		}
	}
	return out, nil
}

// encodeChunk appends typ/flags/value to buf as a padded TLV. Per
// spec.md §4.1 the padding is always written on encode, including for
// the final chunk in the packet.
func encodeChunk(buf []byte, typ Type, flags Flags, value []byte) []byte {
	length := chunkHeaderLen + len(value)
	buf = append(buf, byte(typ), byte(flags), byte(length>>8), byte(length))
	buf = append(buf, value...)
	for i := 0; i < padLen(length); i++ {
		buf = append(buf, 0)
	}
	return buf
}
