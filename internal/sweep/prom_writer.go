package sweep

import (
	"github.com/prometheus/client_golang/prometheus"
)

const promNamespace = "netsim_sweep"

// PromWriter exports run outcomes as Prometheus metrics.
type PromWriter struct {
	runs       *prometheus.CounterVec
	skipped    prometheus.Counter
	duration   *prometheus.HistogramVec
	throughput *prometheus.GaugeVec
	latency    *prometheus.GaugeVec
	loss       *prometheus.GaugeVec
	pdr        *prometheus.GaugeVec
	progress   *prometheus.GaugeVec
}

// NewPromWriter registers its collectors with reg.
func NewPromWriter(reg prometheus.Registerer) (*PromWriter, error) {
	pointLabels := []string{"sweep", "point"}
	w := &PromWriter{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: promNamespace, Name: "runs_total", Help: "Simulator runs by final status.",
		}, []string{"sweep", "status"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace, Name: "skipped_lines_total", Help: "Output lines dropped on numeric conversion.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: promNamespace, Name: "run_duration_seconds", Help: "Wall time per simulator run.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"sweep", "status"}),
		throughput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: promNamespace, Name: "throughput_mbps", Help: "Mean throughput per configuration point.",
		}, pointLabels),
		latency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: promNamespace, Name: "mean_latency_ms", Help: "Mean latency per configuration point.",
		}, pointLabels),
		loss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: promNamespace, Name: "loss_rate_pct", Help: "Loss rate per configuration point.",
		}, pointLabels),
		pdr: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: promNamespace, Name: "pdr_pct", Help: "Packet delivery ratio per configuration point.",
		}, pointLabels),
		progress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: promNamespace, Name: "points", Help: "Configuration points of the sweep by state.",
		}, []string{"sweep", "state"}),
	}
	for _, c := range []prometheus.Collector{w.runs, w.skipped, w.duration, w.throughput, w.latency, w.loss, w.pdr, w.progress} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (w *PromWriter) StartSweep(info SweepInfo) error {
	w.progress.WithLabelValues(info.Name, "total").Set(float64(info.Points))
	w.progress.WithLabelValues(info.Name, "done").Set(0)
	return nil
}

// WriteResult updates counters and per-point gauges.
func (w *PromWriter) WriteResult(r RunResult) error {
	status := string(r.Status)
	w.runs.WithLabelValues(r.Sweep, status).Inc()
	w.skipped.Add(float64(r.SkippedLines))
	w.duration.WithLabelValues(r.Sweep, status).Observe(r.Duration.Seconds())
	point := r.Point.String()
	w.throughput.WithLabelValues(r.Sweep, point).Set(r.ThroughputMbps)
	w.latency.WithLabelValues(r.Sweep, point).Set(r.MeanLatencyMs)
	w.loss.WithLabelValues(r.Sweep, point).Set(r.LossRatePct)
	w.pdr.WithLabelValues(r.Sweep, point).Set(r.PDRPct)
	w.progress.WithLabelValues(r.Sweep, "done").Inc()
	return nil
}
