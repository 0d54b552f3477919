package session

import "errors"

// Errors surfaced to an Association's owning handle, per spec.md §7.
// Wire-level decode failures (chunk.ErrInvalidPacket,
// chunk.ErrBadChecksum) are never returned here -- the engine drops
// the offending packet and counts it (see Stats).
var (
	// ErrBadState signals an operation not valid in the Association's
	// current state (e.g. Send before ESTABLISHED).
	ErrBadState = errors.New("sctp/session: operation invalid in current state")

	// ErrExpectedBeginningFragment signals a middle or end fragment
	// for a (stream, SSN) that was never begun.
	ErrExpectedBeginningFragment = errors.New("sctp/session: fragment received before a beginning fragment")

	// ErrUnexpectedBeginningFragment signals a second beginning
	// fragment for an SSN already under reassembly.
	ErrUnexpectedBeginningFragment = errors.New("sctp/session: beginning fragment for SSN already in reassembly")

	// ErrUnexpectedSSN signals an SSN outside the receive window.
	ErrUnexpectedSSN = errors.New("sctp/session: SSN outside receive window")

	// ErrSendQueueFull signals the Association's send queue, counted in
	// bytes across all streams, would exceed Config.SendQueueHighWater;
	// the caller submitted no data. There is no separate per-stream
	// bound.
	ErrSendQueueFull = errors.New("sctp/session: send queue full")

	// ErrClosed signals the Association has terminated (shutdown,
	// abort, or fatal timeout); no further messages will be
	// delivered or accepted.
	ErrClosed = errors.New("sctp/session: association closed")
)
