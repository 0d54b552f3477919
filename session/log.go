package session

import (
	"github.com/pion/logging"
)

// Logger is the wire-level trace log for one Engine, scoped the way
// datachannel.go scopes its *logging.LeveledLogger off a shared
// LoggerFactory rather than each Association rolling its own. The
// zero value discards every trace call.
type Logger struct {
	*logging.LeveledLogger
}

// NewLogger scopes a trace logger off factory. A nil factory falls
// back to pion/logging's default (leveled, writing to stderr).
func NewLogger(factory logging.LoggerFactory) Logger {
	if factory == nil {
		factory = logging.NewDefaultLoggerFactory()
	}
	return Logger{factory.NewLogger("sctp")}
}

// tracePacket logs an inbound or outbound packet at Trace level only;
// a zero Logger discards it. Callers build chunkTypes before the call,
// whatever the log level.
func (l Logger) tracePacket(dir string, peer string, chunkTypes []string) {
	if l.LeveledLogger == nil {
		return
	}
	l.Tracef("%s %s chunks=%v", dir, peer, chunkTypes)
}
