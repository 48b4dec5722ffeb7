package sphero

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors of one or more links.
type Metrics struct {
	FramesSent      prometheus.Counter
	FramesReceived  *prometheus.CounterVec // labels: kind
	MalformedFrames prometheus.Counter
	OrphanReplies   prometheus.Counter
	Replies         *prometheus.CounterVec // labels: status
	PendingRequests prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sphero_frames_sent_total",
			Help: "Total command frames written to the device.",
		}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sphero_frames_received_total",
			Help: "Total valid frames received from the device.",
		}, []string{"kind"}),
		MalformedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sphero_malformed_frames_total",
			Help: "Total inbound frames dropped because of framing or checksum errors.",
		}),
		OrphanReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sphero_orphan_replies_total",
			Help: "Total replies without an outstanding request.",
		}),
		Replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sphero_replies_total",
			Help: "Replies matched to a request, by response code.",
		}, []string{"status"}),
		PendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sphero_pending_requests",
			Help: "Requests waiting for a reply.",
		}),
	}

	reg.MustRegister(m.FramesSent, m.FramesReceived, m.MalformedFrames, m.OrphanReplies, m.Replies, m.PendingRequests)

	return m
}
