package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors are the node's runtime counters. A nil *Collectors is valid and
// records nothing.
type Collectors struct {
	Registry *prometheus.Registry

	DatagramsReceived *prometheus.CounterVec
	DatagramsDropped  *prometheus.CounterVec
	DatagramsSent     prometheus.Counter
	StatusMerged      prometheus.Counter
	SchedulesApplied  prometheus.Counter
	SchedulesRejected *prometheus.CounterVec
	Nodes             prometheus.Gauge
	Links             prometheus.Gauge
	FlowLatency       *prometheus.GaugeVec
	FlowThroughput    *prometheus.GaugeVec
}

// NewCollectors registers a fresh set of collectors on their own registry.
func NewCollectors() *Collectors {
	c := &Collectors{
		Registry: prometheus.NewRegistry(),
		DatagramsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshctl_datagrams_received_total",
			Help: "Control datagrams decoded, by message kind.",
		}, []string{"kind"}),
		DatagramsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshctl_datagrams_dropped_total",
			Help: "Control datagrams discarded, by reason.",
		}, []string{"reason"}),
		DatagramsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshctl_datagrams_sent_total",
			Help: "Control datagrams sent.",
		}),
		StatusMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshctl_status_merged_total",
			Help: "Status messages merged into network state.",
		}),
		SchedulesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshctl_schedules_applied_total",
			Help: "Schedules installed.",
		}),
		SchedulesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshctl_schedules_rejected_total",
			Help: "Schedule messages ignored, by reason.",
		}, []string{"reason"}),
		Nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meshctl_nodes",
			Help: "Provisioned nodes.",
		}),
		Links: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meshctl_flow_links",
			Help: "Known flow links.",
		}),
		FlowLatency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "meshctl_flow_latency_seconds",
			Help: "Latest reported flow latency.",
		}, []string{"flow"}),
		FlowThroughput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "meshctl_flow_throughput_bps",
			Help: "Latest reported flow throughput.",
		}, []string{"flow"}),
	}
	c.Registry.MustRegister(
		c.DatagramsReceived,
		c.DatagramsDropped,
		c.DatagramsSent,
		c.StatusMerged,
		c.SchedulesApplied,
		c.SchedulesRejected,
		c.Nodes,
		c.Links,
		c.FlowLatency,
		c.FlowThroughput,
	)
	return c
}

func (c *Collectors) Received(kind string) {
	if c == nil {
		return
	}
	c.DatagramsReceived.WithLabelValues(kind).Inc()
}

func (c *Collectors) Dropped(reason string) {
	if c == nil {
		return
	}
	c.DatagramsDropped.WithLabelValues(reason).Inc()
}

func (c *Collectors) Sent() {
	if c == nil {
		return
	}
	c.DatagramsSent.Inc()
}

func (c *Collectors) Merged() {
	if c == nil {
		return
	}
	c.StatusMerged.Inc()
}

func (c *Collectors) ScheduleApplied() {
	if c == nil {
		return
	}
	c.SchedulesApplied.Inc()
}

func (c *Collectors) ScheduleRejected(reason string) {
	if c == nil {
		return
	}
	c.SchedulesRejected.WithLabelValues(reason).Inc()
}

// SetTopology records the current node and link counts.
func (c *Collectors) SetTopology(nodes, links int) {
	if c == nil {
		return
	}
	c.Nodes.Set(float64(nodes))
	c.Links.Set(float64(links))
}

// ObserveFlow records the latest stats for one flow.
func (c *Collectors) ObserveFlow(flow string, latency, throughput float64) {
	if c == nil {
		return
	}
	c.FlowLatency.WithLabelValues(flow).Set(latency)
	c.FlowThroughput.WithLabelValues(flow).Set(throughput)
}
