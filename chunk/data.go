package chunk

import "encoding/binary"

// DataFlags are the per-fragment flags of a DATA chunk.
const (
	// FlagEnd marks the final fragment of a user message.
	FlagEnd Flags = 1 << 0
	// FlagBegin marks the first fragment of a user message.
	FlagBegin Flags = 1 << 1
	// FlagUnordered marks a message delivered without regard to SSN
	// order, per spec.md §4.3 "Ordering and tie-breaks".
	FlagUnordered Flags = 1 << 2
)

// Data is the decoded value of a DATA chunk: one fragment of a user
// message. See spec.md §3 "Message".
type Data struct {
	TSN    uint32
	Stream uint16
	SSN    uint16
	PPID   uint32
	Flags  Flags
	Data   []byte
}

const dataFixedLen = 12

// Begin reports whether this fragment starts a message.
func (d Data) Begin() bool { return d.Flags&FlagBegin != 0 }

// End reports whether this fragment ends a message.
func (d Data) End() bool { return d.Flags&FlagEnd != 0 }

// Unordered reports whether the U flag is set.
func (d Data) Unordered() bool { return d.Flags&FlagUnordered != 0 }

// DecodeData parses the value of a DATA chunk's raw record.
func DecodeData(raw Raw) (Data, error) {
	if len(raw.Value) < dataFixedLen {
		return Data{}, ErrInvalidPacket
	}
	return Data{
		TSN:    binary.BigEndian.Uint32(raw.Value[0:4]),
		Stream: binary.BigEndian.Uint16(raw.Value[4:6]),
		SSN:    binary.BigEndian.Uint16(raw.Value[6:8]),
		PPID:   binary.BigEndian.Uint32(raw.Value[8:12]),
		Flags:  raw.Flags,
		Data:   raw.Value[dataFixedLen:],
	}, nil
}

// EncodeData renders a DATA chunk.
func EncodeData(d Data) Raw {
	value := make([]byte, dataFixedLen+len(d.Data))
	binary.BigEndian.PutUint32(value[0:4], d.TSN)
	binary.BigEndian.PutUint16(value[4:6], d.Stream)
	binary.BigEndian.PutUint16(value[6:8], d.SSN)
	binary.BigEndian.PutUint32(value[8:12], d.PPID)
	copy(value[dataFixedLen:], d.Data)
	return Raw{Type: TypeData, Flags: d.Flags, Value: value}
}
