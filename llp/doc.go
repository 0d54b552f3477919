// Package llp provides the lower-layer protocol abstraction of
// spec.md §4.2: a non-blocking, best-effort datagram transport that
// the packet engine drives. UDP implements RFC 6951 encapsulation;
// Pipe is an in-memory pair used by tests and by DTLS-less local
// loopback.
package llp
