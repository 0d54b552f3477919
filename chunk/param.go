package chunk

import "encoding/binary"

// ParamType identifies a parameter kind carried inside INIT, INIT ACK
// and a handful of other chunks. See RFC 4960 §3.2.1/§3.3.2.1.
type ParamType uint16

// Parameter types used by this implementation.
const (
	ParamIPv4Addr            ParamType = 5
	ParamIPv6Addr            ParamType = 6
	ParamStateCookie         ParamType = 7
	ParamCookiePreservative  ParamType = 9
	ParamHostNameAddr        ParamType = 11
	ParamSupportedAddrTypes  ParamType = 12
)

// UnrecognizedAction mirrors Type.UnrecognizedAction for parameters,
// per the same two-high-order-bits discipline (RFC 4960 §3.2.1).
func (t ParamType) UnrecognizedAction() UnrecognizedAction {
	return UnrecognizedAction(t >> 14)
}

// Param is a decoded parameter TLV.
type Param struct {
	Type  ParamType
	Value []byte
}

const paramHeaderLen = 4

// decodeParams parses a sequence of parameter TLVs, applying the same
// tag-length-value discipline and padding rules as decodeChunks.
func decodeParams(buf []byte) ([]Param, error) {
	var out []Param
	offset := 0
	for offset < len(buf) {
		remaining := len(buf) - offset
		if remaining < paramHeaderLen {
			return nil, ErrInvalidPacket
		}
		typ := ParamType(binary.BigEndian.Uint16(buf[offset:]))
		length := int(binary.BigEndian.Uint16(buf[offset+2:]))
		if length < paramHeaderLen {
			return nil, ErrInvalidPacket
		}
		valueLen := length - paramHeaderLen
		if valueLen > remaining-paramHeaderLen {
			return nil, ErrInvalidPacket
		}
		value := buf[offset+paramHeaderLen : offset+length]
		out = append(out, Param{Type: typ, Value: value})

		paramEnd := offset + length
		pad := padLen(length)
		if paramEnd+pad <= len(buf) {
			offset = paramEnd + pad
		} else {
			if paramEnd != len(buf) {
				return nil, ErrInvalidPacket
			}
			offset = paramEnd
		}
	}
	return out, nil
}

// encodeParam appends a padded parameter TLV to buf.
func encodeParam(buf []byte, typ ParamType, value []byte) []byte {
	length := paramHeaderLen + len(value)
	buf = append(buf, byte(typ>>8), byte(typ), byte(length>>8), byte(length))
	buf = append(buf, value...)
	for i := 0; i < padLen(length); i++ {
		buf = append(buf, 0)
	}
	return buf
}
