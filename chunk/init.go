package chunk

import "encoding/binary"

// Init is the fixed portion of an INIT or INIT ACK chunk (RFC 4960
// §3.3.2/§3.3.3). Both formats share this layout; Cookie holds the
// state cookie parameter present only on INIT ACK.
type Init struct {
	InitiateTag     uint32
	AdvertisedRwnd  uint32
	OutboundStreams uint16
	InboundStreams  uint16
	InitialTSN      uint32

	// Cookie is the opaque state cookie parameter. Present (non-nil)
	// only when decoded from an INIT ACK.
	Cookie []byte
}

const initFixedLen = 16

// DecodeInit parses the value of an INIT or INIT ACK chunk.
func DecodeInit(value []byte) (Init, error) {
	if len(value) < initFixedLen {
		return Init{}, ErrInvalidPacket
	}
	in := Init{
		InitiateTag:     binary.BigEndian.Uint32(value[0:4]),
		AdvertisedRwnd:  binary.BigEndian.Uint32(value[4:8]),
		OutboundStreams: binary.BigEndian.Uint16(value[8:10]),
		InboundStreams:  binary.BigEndian.Uint16(value[10:12]),
		InitialTSN:      binary.BigEndian.Uint32(value[12:16]),
	}

	params, err := decodeParams(value[initFixedLen:])
	if err != nil {
		return Init{}, err
	}
	for _, p := range params {
		if p.Type == ParamStateCookie {
			in.Cookie = p.Value
		}
	}
	return in, nil
}

// EncodeInit renders an INIT chunk (no cookie parameter).
func EncodeInit(in Init) Raw {
	return Raw{Type: TypeInit, Value: encodeInitFixed(in)}
}

// EncodeInitAck renders an INIT ACK chunk, embedding the state cookie
// as a parameter.
func EncodeInitAck(in Init) Raw {
	value := encodeInitFixed(in)
	value = encodeParam(value, ParamStateCookie, in.Cookie)
	return Raw{Type: TypeInitAck, Value: value}
}

func encodeInitFixed(in Init) []byte {
	value := make([]byte, initFixedLen)
	binary.BigEndian.PutUint32(value[0:4], in.InitiateTag)
	binary.BigEndian.PutUint32(value[4:8], in.AdvertisedRwnd)
	binary.BigEndian.PutUint16(value[8:10], in.OutboundStreams)
	binary.BigEndian.PutUint16(value[10:12], in.InboundStreams)
	binary.BigEndian.PutUint32(value[12:16], in.InitialTSN)
	return value
}
