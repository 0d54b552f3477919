package chunk

import "encoding/binary"

// EncodeCookieEcho renders a COOKIE ECHO chunk echoing the opaque
// cookie previously offered in an INIT ACK.
func EncodeCookieEcho(cookie []byte) Raw {
	return Raw{Type: TypeCookieEcho, Value: cookie}
}

// DecodeCookieEcho returns the echoed cookie bytes verbatim.
func DecodeCookieEcho(raw Raw) []byte { return raw.Value }

// EncodeCookieAck renders a COOKIE ACK chunk (no value).
func EncodeCookieAck() Raw { return Raw{Type: TypeCookieAck} }

// Heartbeat carries an opaque sender-defined info parameter that the
// peer must echo back unmodified in HEARTBEAT ACK (RFC 4960 §3.3.5).
type Heartbeat struct {
	Info []byte
}

const paramHeartbeatInfo ParamType = 1

// EncodeHeartbeat renders a HEARTBEAT chunk.
func EncodeHeartbeat(hb Heartbeat) Raw {
	value := encodeParam(nil, paramHeartbeatInfo, hb.Info)
	return Raw{Type: TypeHeartbeat, Value: value}
}

// DecodeHeartbeat parses the value of a HEARTBEAT or HEARTBEAT ACK
// chunk.
func DecodeHeartbeat(raw Raw) (Heartbeat, error) {
	params, err := decodeParams(raw.Value)
	if err != nil {
		return Heartbeat{}, err
	}
	for _, p := range params {
		if p.Type == paramHeartbeatInfo {
			return Heartbeat{Info: p.Value}, nil
		}
	}
	return Heartbeat{}, nil
}

// EncodeHeartbeatAck renders a HEARTBEAT ACK chunk echoing info.
func EncodeHeartbeatAck(hb Heartbeat) Raw {
	value := encodeParam(nil, paramHeartbeatInfo, hb.Info)
	return Raw{Type: TypeHeartbeatAck, Value: value}
}

// CauseCode identifies the reason carried by an ABORT or ERROR chunk
// cause parameter, per RFC 4960 §3.3.10.
type CauseCode uint16

// Cause codes this implementation emits or recognises.
const (
	CauseInvalidStreamID         CauseCode = 1
	CauseStaleCookie             CauseCode = 3
	CauseOutOfResource           CauseCode = 4
	CauseUnresolvableAddr        CauseCode = 5
	CauseRestartAssocNewAddr     CauseCode = 11
	CauseUserInitiatedAbort      CauseCode = 12
	CauseProtocolViolation       CauseCode = 13
)

// Abort renders an ABORT chunk with a single cause parameter carrying
// a human-readable reason. The reflected flag (T-bit) is left unset:
// this implementation always knows its own verification tag when it
// aborts, per spec.md §4.3.
func Abort(cause CauseCode, reason string) Raw {
	value := encodeParam(nil, ParamType(cause), []byte(reason))
	return Raw{Type: TypeAbort, Value: value}
}

// EncodeShutdown renders a SHUTDOWN chunk carrying the cumulative TSN
// ack point as of shutdown initiation.
func EncodeShutdown(cumTSNAck uint32) Raw {
	value := make([]byte, 4)
	binary.BigEndian.PutUint32(value, cumTSNAck)
	return Raw{Type: TypeShutdown, Value: value}
}

// DecodeShutdown parses the value of a SHUTDOWN chunk.
func DecodeShutdown(value []byte) (uint32, error) {
	if len(value) < 4 {
		return 0, ErrInvalidPacket
	}
	return binary.BigEndian.Uint32(value), nil
}

// EncodeShutdownAck renders a SHUTDOWN ACK chunk (no value).
func EncodeShutdownAck() Raw { return Raw{Type: TypeShutdownAck} }

// EncodeShutdownComplete renders a SHUTDOWN COMPLETE chunk.
func EncodeShutdownComplete() Raw { return Raw{Type: TypeShutdownComplete} }

// EncodeError renders an ERROR chunk with a single cause parameter.
func EncodeError(cause CauseCode, reason string) Raw {
	value := encodeParam(nil, ParamType(cause), []byte(reason))
	return Raw{Type: TypeError, Value: value}
}
