package sctp

import (
	"errors"
	"fmt"

	"github.com/webrtc-sctp/sctp/chunk"
	"github.com/webrtc-sctp/sctp/llp"
	"github.com/webrtc-sctp/sctp/session"
)

// Kind classifies an Error so callers can branch on outcome without
// string matching, per spec.md §7.
type Kind int

const (
	// Io signals a lower-layer transport failure.
	Io Kind = iota
	// InvalidPacket signals a packet that failed TLV or structural
	// decoding. The engine drops it; this kind reaches a caller only
	// through Stats, never through a handle.
	InvalidPacket
	// BadChecksum signals a packet whose CRC-32c did not validate.
	BadChecksum
	// BadState signals an operation not valid in the association's
	// current state.
	BadState
	// ExpectedBeginningFragment signals a middle or end fragment for a
	// stream/SSN that was never begun.
	ExpectedBeginningFragment
	// UnexpectedBeginningFragment signals a second beginning fragment
	// for an SSN already under reassembly.
	UnexpectedBeginningFragment
	// UnexpectedSSN signals an SSN outside the receive window.
	UnexpectedSSN
	// SendQueueFull signals the per-association send queue exceeded
	// its configured high-water mark; the call submitted no data.
	SendQueueFull
	// CommandQueueFull signals the engine's bounded command channel
	// was full; the call was never posted.
	CommandQueueFull
	// Closed signals the association or engine has terminated.
	Closed
	// Timeout signals a Recv deadline elapsed with nothing delivered.
	Timeout
)

// String names the Kind the way RFC 4960 error causes and spec.md §7
// name them, not Go's zero-indexed constant name.
func (k Kind) String() string {
	switch k {
	case Io:
		return "Io"
	case InvalidPacket:
		return "InvalidPacket"
	case BadChecksum:
		return "BadChecksum"
	case BadState:
		return "BadState"
	case ExpectedBeginningFragment:
		return "ExpectedBeginningFragment"
	case UnexpectedBeginningFragment:
		return "UnexpectedBeginningFragment"
	case UnexpectedSSN:
		return "UnexpectedSSN"
	case SendQueueFull:
		return "SendQueueFull"
	case CommandQueueFull:
		return "CommandQueueFull"
	case Closed:
		return "Closed"
	case Timeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Error wraps a Kind with the underlying cause, following
// part5.CmdUnk/CauseMis's shape of a typed struct carrying protocol
// context plus an Error() string built from it.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("sctp: %s", e.Kind)
	}
	return fmt.Sprintf("sctp: %s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target names the same Kind, so callers can write
// errors.Is(err, sctp.Closed) instead of a type assertion.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func (k Kind) Error() string { return k.String() }

// wrapErr classifies a session/chunk/llp sentinel into an *Error. Used
// at the handle boundary so callers never see package-internal
// sentinels directly.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, session.ErrBadState):
		return &Error{Kind: BadState, Cause: err}
	case errors.Is(err, session.ErrExpectedBeginningFragment):
		return &Error{Kind: ExpectedBeginningFragment, Cause: err}
	case errors.Is(err, session.ErrUnexpectedBeginningFragment):
		return &Error{Kind: UnexpectedBeginningFragment, Cause: err}
	case errors.Is(err, session.ErrUnexpectedSSN):
		return &Error{Kind: UnexpectedSSN, Cause: err}
	case errors.Is(err, session.ErrSendQueueFull):
		return &Error{Kind: SendQueueFull, Cause: err}
	case errors.Is(err, session.ErrClosed):
		return &Error{Kind: Closed, Cause: err}
	case errors.Is(err, chunk.ErrInvalidPacket):
		return &Error{Kind: InvalidPacket, Cause: err}
	case errors.Is(err, chunk.ErrBadChecksum):
		return &Error{Kind: BadChecksum, Cause: err}
	case errors.Is(err, llp.ErrBackPressure), errors.Is(err, llp.ErrNotReady):
		return &Error{Kind: Io, Cause: err}
	default:
		return &Error{Kind: Io, Cause: err}
	}
}

// errCommandQueueFull is returned when a Command could not be posted
// to an Engine because its bounded channel was full.
var errCommandQueueFull = &Error{Kind: CommandQueueFull, Cause: errors.New("sctp: command queue full")}

// errTimeout is returned by Recv when the deadline elapses with
// nothing delivered.
var errTimeout = &Error{Kind: Timeout, Cause: errors.New("sctp: receive deadline exceeded")}
