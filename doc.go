// Package sctp implements a user-space core of the Stream Control
// Transmission Protocol (RFC 4960) sized for WebRTC data channels: the
// association state machine, ordered and unordered stream delivery
// with fragmentation, SACK-driven congestion control, and UDP
// encapsulation (RFC 6951) as the only lower layer, with an in-memory
// Pipe available for tests.
//
// A single cooperative goroutine owns every association; Listen and
// Dial return handles that post commands to it over bounded channels
// and are safe to use from any goroutine.
package sctp
