package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"
)

// ID names an Association for logging and metrics, independent of its
// verification tags (which change across the lifetime of a restarted
// peer).
type ID = xid.ID

// NewID mints an Association identifier.
func NewID() ID { return xid.New() }

// Stats holds Prometheus collectors shared by every Association an
// Engine drives. One Stats belongs to one Engine; associations
// reference it to report without owning their own collector set,
// following the single-goroutine-owns-state shape of track.Head.
type Stats struct {
	AssocsStarted   prometheus.Counter
	AssocsEstablished prometheus.Counter
	AssocsClosed    prometheus.Counter
	AssocsAborted   prometheus.Counter

	PacketsIn  prometheus.Counter
	PacketsOut prometheus.Counter
	PacketsDropped prometheus.Counter

	ChunksRetransmitted prometheus.Counter
	FastRetransmits     prometheus.Counter

	BytesIn  prometheus.Counter
	BytesOut prometheus.Counter
}

// NewStats registers a fresh Stats with reg. Pass prometheus.NewRegistry()
// for test isolation, or prometheus.DefaultRegisterer in a long-running
// process.
func NewStats(reg prometheus.Registerer) *Stats {
	s := &Stats{
		AssocsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sctp", Name: "assocs_started_total",
			Help: "Associations for which a handshake was initiated or accepted.",
		}),
		AssocsEstablished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sctp", Name: "assocs_established_total",
			Help: "Associations that completed the handshake.",
		}),
		AssocsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sctp", Name: "assocs_closed_total",
			Help: "Associations that completed an orderly shutdown.",
		}),
		AssocsAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sctp", Name: "assocs_aborted_total",
			Help: "Associations that ended via ABORT.",
		}),
		PacketsIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sctp", Name: "packets_in_total",
			Help: "Packets accepted from the lower layer.",
		}),
		PacketsOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sctp", Name: "packets_out_total",
			Help: "Packets handed to the lower layer.",
		}),
		PacketsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sctp", Name: "packets_dropped_total",
			Help: "Packets discarded for failing checksum, TLV or tag validation.",
		}),
		ChunksRetransmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sctp", Name: "chunks_retransmitted_total",
			Help: "DATA chunks retransmitted by T3-rtx or fast retransmit.",
		}),
		FastRetransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sctp", Name: "fast_retransmits_total",
			Help: "Fast-retransmit events triggered by duplicate SACKs.",
		}),
		BytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sctp", Name: "bytes_in_total",
			Help: "DATA payload bytes delivered to receivers.",
		}),
		BytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sctp", Name: "bytes_out_total",
			Help: "DATA payload bytes accepted from senders.",
		}),
	}

	for _, c := range []prometheus.Collector{
		s.AssocsStarted, s.AssocsEstablished, s.AssocsClosed, s.AssocsAborted,
		s.PacketsIn, s.PacketsOut, s.PacketsDropped,
		s.ChunksRetransmitted, s.FastRetransmits,
		s.BytesIn, s.BytesOut,
	} {
		if reg != nil {
			reg.MustRegister(c)
		}
	}
	return s
}
