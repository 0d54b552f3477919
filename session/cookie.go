package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"sync"
	"time"
)

// errStaleCookie signals that a COOKIE-ECHO's signature verified but
// its Valid.Cookie.Life has elapsed.
var errStaleCookie = errors.New("sctp/session: state cookie expired")

// errBadCookie signals a COOKIE-ECHO whose signature does not verify,
// or whose body is malformed.
var errBadCookie = errors.New("sctp/session: state cookie signature mismatch")

const cookieKeySize = 32
const cookieMACSize = sha256.Size

// cookieBody is the information the listener needs to materialise an
// Association on COOKIE-ECHO without having created any state at
// INIT time, per spec.md §4.3 "Cookie authentication".
type cookieBody struct {
	PeerAddr        string // peer network address, as net.Addr.String()
	InitiateTag     uint32 // I_a, offered by the peer's INIT
	LocalVerifTag   uint32 // I_b, generated for the INIT ACK
	PeerInitialTSN  uint32
	LocalInitialTSN uint32 // generated at INIT-ACK time and echoed there, so it matches exactly what the association uses once materialised at COOKIE-ECHO
	OutboundStreams uint16
	InboundStreams  uint16
	IssuedUnixNano  int64
}

func (b cookieBody) marshal() []byte {
	addr := []byte(b.PeerAddr)
	buf := make([]byte, 2+len(addr)+4+4+4+4+2+2+8)
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(addr)))
	n := 2
	n += copy(buf[n:], addr)
	binary.BigEndian.PutUint32(buf[n:], b.InitiateTag)
	n += 4
	binary.BigEndian.PutUint32(buf[n:], b.LocalVerifTag)
	n += 4
	binary.BigEndian.PutUint32(buf[n:], b.PeerInitialTSN)
	n += 4
	binary.BigEndian.PutUint32(buf[n:], b.LocalInitialTSN)
	n += 4
	binary.BigEndian.PutUint16(buf[n:], b.OutboundStreams)
	n += 2
	binary.BigEndian.PutUint16(buf[n:], b.InboundStreams)
	n += 2
	binary.BigEndian.PutUint64(buf[n:], uint64(b.IssuedUnixNano))
	return buf
}

func unmarshalCookieBody(buf []byte) (cookieBody, error) {
	if len(buf) < 2 {
		return cookieBody{}, errBadCookie
	}
	addrLen := int(binary.BigEndian.Uint16(buf[0:2]))
	n := 2
	if len(buf) < n+addrLen+4+4+4+4+2+2+8 {
		return cookieBody{}, errBadCookie
	}
	b := cookieBody{PeerAddr: string(buf[n : n+addrLen])}
	n += addrLen
	b.InitiateTag = binary.BigEndian.Uint32(buf[n:])
	n += 4
	b.LocalVerifTag = binary.BigEndian.Uint32(buf[n:])
	n += 4
	b.PeerInitialTSN = binary.BigEndian.Uint32(buf[n:])
	n += 4
	b.LocalInitialTSN = binary.BigEndian.Uint32(buf[n:])
	n += 4
	b.OutboundStreams = binary.BigEndian.Uint16(buf[n:])
	n += 2
	b.InboundStreams = binary.BigEndian.Uint16(buf[n:])
	n += 2
	b.IssuedUnixNano = int64(binary.BigEndian.Uint64(buf[n:]))
	return b, nil
}

// cookieSigner produces and verifies signed state cookies. The secret
// is rotated periodically; two generations are kept so cookies issued
// just before a rotation remain valid, per spec.md §4.3.
type cookieSigner struct {
	mu       sync.Mutex
	current  [cookieKeySize]byte
	previous [cookieKeySize]byte

	life time.Duration
}

func newCookieSigner(life time.Duration) *cookieSigner {
	s := &cookieSigner{life: life}
	if _, err := rand.Read(s.current[:]); err != nil {
		panic("sctp/session: failed to seed cookie secret: " + err.Error())
	}
	s.previous = s.current
	return s
}

// rotate replaces the current secret, demoting it to previous. Call
// periodically (e.g. every ValidCookieLife) from the engine's timer
// wheel.
func (s *cookieSigner) rotate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previous = s.current
	if _, err := rand.Read(s.current[:]); err != nil {
		panic("sctp/session: failed to rotate cookie secret: " + err.Error())
	}
}

// sign returns an opaque cookie: the body followed by its keyed MAC
// under the current secret.
func (s *cookieSigner) sign(b cookieBody) []byte {
	s.mu.Lock()
	key := s.current
	s.mu.Unlock()

	body := b.marshal()
	mac := hmac.New(sha256.New, key[:])
	mac.Write(body)
	return append(body, mac.Sum(nil)...)
}

// verify checks cookie's MAC against both known secret generations
// and its timestamp against life, returning the decoded body.
func (s *cookieSigner) verify(cookie []byte) (cookieBody, error) {
	if len(cookie) < cookieMACSize {
		return cookieBody{}, errBadCookie
	}
	body := cookie[:len(cookie)-cookieMACSize]
	tag := cookie[len(cookie)-cookieMACSize:]

	s.mu.Lock()
	current, previous := s.current, s.previous
	s.mu.Unlock()

	if !validMAC(current[:], body, tag) && !validMAC(previous[:], body, tag) {
		return cookieBody{}, errBadCookie
	}

	b, err := unmarshalCookieBody(body)
	if err != nil {
		return cookieBody{}, err
	}
	if time.Since(time.Unix(0, b.IssuedUnixNano)) > s.life {
		return cookieBody{}, errStaleCookie
	}
	return b, nil
}

func validMAC(key, body, tag []byte) bool {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	want := mac.Sum(nil)
	return subtle.ConstantTimeCompare(want, tag) == 1
}
