package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
)

// Recorder holds the Prometheus metrics for route operations.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry      *prometheus.Registry
	operations    *prometheus.CounterVec
	groupDuration *prometheus.HistogramVec
	planned       *prometheus.GaugeVec
}

// NewRecorder creates a recorder with its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "luckyroute_route_operations_total",
			Help: "Route operations attempted, by action and group result",
		}, []string{"action", "result"}),
		groupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "luckyroute_group_duration_seconds",
			Help:    "Time spent applying one group of route operations",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"action"}),
		planned: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "luckyroute_plan_operations",
			Help: "Operations in the most recent reconciliation plan",
		}, []string{"action"}),
	}

	r.registry.MustRegister(r.operations, r.groupDuration, r.planned)
	return r
}

// RecordGroup records one executed group
func (r *Recorder) RecordGroup(action string, size int, duration time.Duration, success bool) {
	if r == nil {
		return
	}

	result := ResultSuccess
	if !success {
		result = ResultFailed
	}

	r.operations.WithLabelValues(action, result).Add(float64(size))
	r.groupDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordPlan records the size of a computed plan
func (r *Recorder) RecordPlan(adds, deletes int) {
	if r == nil {
		return
	}
	r.planned.WithLabelValues("add").Set(float64(adds))
	r.planned.WithLabelValues("delete").Set(float64(deletes))
}

// WriteTextfile dumps the metrics in the text exposition format
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
