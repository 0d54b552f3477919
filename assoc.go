package sctp

import (
	"time"

	"github.com/webrtc-sctp/sctp/session"
)

// Message is one complete user message delivered to a stream, per
// spec.md §4.4.
type Message = session.Message

// recvPollInterval bounds how often a blocked Recv re-polls the
// engine; the engine itself has no blocking receive path (spec.md §9
// "Cross-thread handle"), so the handle side supplies the wait.
const recvPollInterval = 2 * time.Millisecond

// Assoc is a handle to one association, safe for concurrent use from
// any goroutine: every method posts a session.Command over a bounded
// channel and awaits the matching Reply, following part5.Caller.Send's
// o := session.NewOutbound(...); return <-o.Done shape, generalised to
// one request/reply pair per operation instead of a single Outbound.
type Assoc struct {
	stack *Stack
	id    session.ID

	buf []Message
}

// Send submits data for delivery on stream under ppid. SendQueueFull
// is returned, with no side effect, if adding data would take the
// association's outbound queue past its high-water mark.
func (a *Assoc) Send(stream uint16, ppid uint32, ordered bool, data []byte) error {
	reply, err := a.stack.post(session.Command{
		Kind:    session.CmdSend,
		AssocID: a.id,
		Stream:  stream,
		PPID:    ppid,
		Ordered: ordered,
		Data:    data,
	})
	if err != nil {
		return err
	}
	return wrapErr(reply.Err)
}

// Recv waits up to timeout for the next message. A zero timeout polls
// once without waiting; a negative timeout waits indefinitely.
// Returns Timeout if nothing arrives in time, or Closed once the
// association has terminated and every buffered message has been
// delivered.
func (a *Assoc) Recv(timeout time.Duration) (Message, error) {
	if m, ok := a.takeBuffered(); ok {
		return m, nil
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		reply, err := a.stack.post(session.Command{Kind: session.CmdRecvPoll, AssocID: a.id})
		if err != nil {
			return Message{}, err
		}
		if len(reply.Messages) > 0 {
			a.buf = append(a.buf, reply.Messages...)
			m, _ := a.takeBuffered()
			return m, nil
		}
		if reply.Err != nil {
			return Message{}, wrapErr(reply.Err)
		}
		if timeout == 0 || (timeout > 0 && time.Now().After(deadline)) {
			return Message{}, errTimeout
		}
		time.Sleep(recvPollInterval)
	}
}

// RecvWait drains every remaining message up to and including the
// association's closed indication, per spec.md §6
// "Association.recv_wait() (drain to end-of-stream)".
func (a *Assoc) RecvWait() ([]Message, error) {
	var all []Message
	for {
		m, err := a.Recv(-1)
		if err != nil {
			if e, ok := err.(*Error); ok && e.Kind == Closed {
				return all, nil
			}
			return all, err
		}
		all = append(all, m)
	}
}

func (a *Assoc) takeBuffered() (Message, bool) {
	if len(a.buf) == 0 {
		return Message{}, false
	}
	m := a.buf[0]
	a.buf = a.buf[1:]
	return m, true
}

// Shutdown begins an orderly close: outstanding data drains on both
// sides before SHUTDOWN/SHUTDOWN-ACK/SHUTDOWN-COMPLETE complete the
// association.
func (a *Assoc) Shutdown() error {
	reply, err := a.stack.post(session.Command{Kind: session.CmdShutdown, AssocID: a.id})
	if err != nil {
		return err
	}
	return wrapErr(reply.Err)
}

// Abort terminates the association immediately with an ABORT chunk;
// no further messages are delivered and no further chunks are
// emitted.
func (a *Assoc) Abort() error {
	reply, err := a.stack.post(session.Command{Kind: session.CmdAbort, AssocID: a.id})
	if err != nil {
		return err
	}
	return wrapErr(reply.Err)
}
