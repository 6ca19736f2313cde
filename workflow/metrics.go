package workflow

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the scheduler's Prometheus collectors: in-flight nodes,
// retry counts, merge conflicts, and step latency.
type Metrics struct {
	NodesInFlight  prometheus.Gauge
	NodeRetries    *prometheus.CounterVec
	MergeConflicts prometheus.Counter
	StepLatency    *prometheus.HistogramVec
}

// NewMetrics registers the scheduler's collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agentflow_workflow_nodes_inflight",
			Help: "Number of nodes currently executing.",
		}),
		NodeRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentflow_workflow_node_retries_total",
			Help: "Total node retry attempts, by node id.",
		}, []string{"node_id"}),
		MergeConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentflow_workflow_merge_conflicts_total",
			Help: "Total fan-out state merge conflicts.",
		}),
		StepLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "agentflow_workflow_step_latency_seconds",
			Help: "Latency of one node execution, by node id.",
		}, []string{"node_id"}),
	}
	reg.MustRegister(m.NodesInFlight, m.NodeRetries, m.MergeConflicts, m.StepLatency)
	return m
}
