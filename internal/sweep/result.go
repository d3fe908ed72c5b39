package sweep

import (
	"time"

	"netsim-sweep/internal/trace"
)

// Status classifies how a run ended.
type Status string

const (
	StatusOK       Status = "ok"
	StatusTimeout  Status = "timeout"
	StatusFailed   Status = "failed"
	StatusNoEvents Status = "no_events"
)

// Sentinel metrics recorded for runs that produced nothing usable.
const (
	sentinelLossPct = 100
	sentinelPDRPct  = 0
)

// RunResult is the outcome of one configuration point.
type RunResult struct {
	SweepID string `json:"sweep_id"`
	Sweep   string `json:"sweep,omitempty"`
	Index   int    `json:"index"`
	Point   Point  `json:"point"`
	Status  Status `json:"status"`
	Error   string `json:"error,omitempty"`

	ThroughputMbps float64 `json:"throughput_mbps"`
	MeanLatencyMs  float64 `json:"mean_latency_ms"`
	LatencyP50Ms   float64 `json:"latency_p50_ms"`
	LatencyP95Ms   float64 `json:"latency_p95_ms"`
	LossRatePct    float64 `json:"loss_rate_pct"`
	PDRPct         float64 `json:"pdr_pct"`
	TxCount        int     `json:"tx_count"`
	RxCount        int     `json:"rx_count"`
	Pairs          int     `json:"pairs"`
	SkippedLines   int     `json:"skipped_lines"`

	Reported  *trace.Reported `json:"reported,omitempty"`
	Capture   string          `json:"capture,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	Duration  time.Duration   `json:"duration"`
}

// OK reports whether the run produced usable metrics.
func (r RunResult) OK() bool { return r.Status == StatusOK }

func (r *RunResult) applySentinel() {
	r.ThroughputMbps = 0
	r.MeanLatencyMs = 0
	r.LatencyP50Ms = 0
	r.LatencyP95Ms = 0
	r.LossRatePct = sentinelLossPct
	r.PDRPct = sentinelPDRPct
}

// SweepInfo announces a sweep to writers before the first run.
type SweepInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ParamNames []string  `json:"param_names"`
	Points     int       `json:"points"`
	StartedAt  time.Time `json:"started_at"`
}

// Result is a finished sweep. Runs are in input order.
type Result struct {
	ID         string
	Name       string
	ParamNames []string
	StartedAt  time.Time
	FinishedAt time.Time

	runs []RunResult
}

// NewResult wraps already completed runs, e.g. from a replayed log.
func NewResult(id, name string, runs []RunResult) *Result {
	points := make([]Point, len(runs))
	for i, r := range runs {
		points[i] = r.Point
	}
	res := &Result{ID: id, Name: name, ParamNames: ParamNames(points), runs: append([]RunResult(nil), runs...)}
	if len(runs) > 0 {
		res.StartedAt = runs[0].StartedAt
		last := runs[len(runs)-1]
		res.FinishedAt = last.StartedAt.Add(last.Duration)
	}
	return res
}

// Runs returns a copy of the run results.
func (r *Result) Runs() []RunResult {
	return append([]RunResult(nil), r.runs...)
}

// Len returns the number of completed runs.
func (r *Result) Len() int { return len(r.runs) }

// Counts returns the number of runs per status.
func (r *Result) Counts() map[Status]int {
	c := make(map[Status]int)
	for _, run := range r.runs {
		c[run.Status]++
	}
	return c
}

// Usable returns the runs that ended StatusOK.
func (r *Result) Usable() []RunResult {
	var out []RunResult
	for _, run := range r.runs {
		if run.OK() {
			out = append(out, run)
		}
	}
	return out
}

// Best returns the usable runs with the highest throughput and the lowest
// loss rate. ok is false when no run is usable.
func (r *Result) Best() (throughput, loss RunResult, ok bool) {
	return r.pick(func(a, b RunResult) bool { return a.ThroughputMbps > b.ThroughputMbps },
		func(a, b RunResult) bool { return a.LossRatePct < b.LossRatePct })
}

// Worst mirrors Best.
func (r *Result) Worst() (throughput, loss RunResult, ok bool) {
	return r.pick(func(a, b RunResult) bool { return a.ThroughputMbps < b.ThroughputMbps },
		func(a, b RunResult) bool { return a.LossRatePct > b.LossRatePct })
}

func (r *Result) pick(betterTput, betterLoss func(a, b RunResult) bool) (RunResult, RunResult, bool) {
	usable := r.Usable()
	if len(usable) == 0 {
		return RunResult{}, RunResult{}, false
	}
	t, l := usable[0], usable[0]
	for _, run := range usable[1:] {
		if betterTput(run, t) {
			t = run
		}
		if betterLoss(run, l) {
			l = run
		}
	}
	return t, l, true
}

// accumulator collects runs during a single Orchestrator.Run call.
type accumulator struct {
	res *Result
}

func (a *accumulator) add(r RunResult) { a.res.runs = append(a.res.runs, r) }

func (a *accumulator) finalize(at time.Time) *Result {
	a.res.FinishedAt = at
	res := a.res
	a.res = nil
	return res
}
