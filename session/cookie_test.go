package session

import (
	"testing"
	"time"
)

func TestCookieRoundTrip(t *testing.T) {
	s := newCookieSigner(time.Minute)

	want := cookieBody{
		PeerAddr:        "198.51.100.7:9899",
		InitiateTag:     0xdeadbeef,
		LocalVerifTag:   0x01020304,
		PeerInitialTSN:  42,
		OutboundStreams: 10,
		InboundStreams:  12,
		IssuedUnixNano:  time.Now().UnixNano(),
	}

	cookie := s.sign(want)
	got, err := s.verify(cookie)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestCookieRejectsTamperedBody(t *testing.T) {
	s := newCookieSigner(time.Minute)
	cookie := s.sign(cookieBody{PeerAddr: "198.51.100.7:9899", IssuedUnixNano: time.Now().UnixNano()})
	cookie[0] ^= 0xff

	if _, err := s.verify(cookie); err != errBadCookie {
		t.Fatalf("got %v, want errBadCookie", err)
	}
}

func TestCookieToleratesOneRotation(t *testing.T) {
	s := newCookieSigner(time.Minute)
	want := cookieBody{PeerAddr: "198.51.100.7:9899", IssuedUnixNano: time.Now().UnixNano()}
	cookie := s.sign(want)

	s.rotate()

	got, err := s.verify(cookie)
	if err != nil {
		t.Fatalf("verify after one rotation: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	s.rotate()
	if _, err := s.verify(cookie); err != errBadCookie {
		t.Fatalf("got %v, want errBadCookie after two rotations", err)
	}
}

func TestCookieExpires(t *testing.T) {
	s := newCookieSigner(time.Millisecond)
	cookie := s.sign(cookieBody{PeerAddr: "198.51.100.7:9899", IssuedUnixNano: time.Now().Add(-time.Hour).UnixNano()})

	if _, err := s.verify(cookie); err != errStaleCookie {
		t.Fatalf("got %v, want errStaleCookie", err)
	}
}

func TestCookieRejectsTruncated(t *testing.T) {
	s := newCookieSigner(time.Minute)
	if _, err := s.verify([]byte("short")); err != errBadCookie {
		t.Fatalf("got %v, want errBadCookie", err)
	}
}
