package sctp

import (
	"github.com/webrtc-sctp/sctp/llp"
	"github.com/webrtc-sctp/sctp/session"
)

// Stack owns one Engine's goroutine over one lower layer. Grounded on
// part5.MustLaunch, which starts the single read-loop goroutine over a
// session.Transport and hands back a request-capable handle plus an
// error channel; here the handle is the Stack itself (Listen/Dial) and
// Engine failures surface per-operation instead of on a side channel,
// since an Engine has no single fatal condition the way a broken TCP
// connection does.
type Stack struct {
	engine *session.Engine
	stats  *session.Stats
	stop   chan struct{}
}

// New starts an Engine over ll and returns a Stack ready for Listen
// and Dial. cfg supplies the defaults every association inherits;
// stats may be nil to disable metrics.
func New(ll llp.LowerLayer, cfg session.Config, stats *session.Stats) *Stack {
	e := session.NewEngine(ll, cfg, stats, session.NewLogger(nil))
	s := &Stack{engine: e, stats: stats, stop: make(chan struct{})}
	go e.Run(s.stop)
	return s
}

// Close stops the engine: every association aborts, every listener is
// closed, and all commands already queued fail with Closed.
func (s *Stack) Close() error {
	close(s.stop)
	return nil
}

func (s *Stack) post(cmd session.Command) (session.Reply, error) {
	cmd.Reply = make(chan session.Reply, 1)
	select {
	case s.engine.Commands() <- cmd:
	default:
		return session.Reply{}, errCommandQueueFull
	}
	return <-cmd.Reply, nil
}
