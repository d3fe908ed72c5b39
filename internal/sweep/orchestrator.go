// Package sweep runs a simulator across configuration points and reports
// per-point delivery metrics to pluggable result writers.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"

	"netsim-sweep/internal/runner"
	"netsim-sweep/internal/trace"
)

// ErrSweepExhausted is returned when no run of a sweep produced usable metrics.
var ErrSweepExhausted = errors.New("sweep exhausted: no run produced usable metrics")

// Options configures an Orchestrator.
type Options struct {
	Name        string
	Template    *runner.Template
	Runner      runner.Runner         // defaults to an ExecRunner
	Extractor   *trace.Extractor      // defaults to the builtin grammar
	DefaultSize int                   // packet size for sends without one
	Timeout     time.Duration         // per run, zero means unbounded
	Captures    runner.CaptureFactory // defaults to memory captures
	Writer      ResultWriter          // may be nil
	Parallelism int                   // <= 1 runs sequentially
	Log         *slog.Logger
}

// Orchestrator drives one sweep at a time.
type Orchestrator struct {
	opts  Options
	log   *slog.Logger
	locks runner.PathLocks
}

// NewOrchestrator validates opts and fills in defaults.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Template == nil {
		return nil, errors.New("sweep: command template required")
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Runner == nil {
		opts.Runner = runner.NewExecRunner(opts.Log)
	}
	if opts.Extractor == nil {
		opts.Extractor = trace.NewExtractor(nil, opts.Log)
	}
	if opts.Captures == nil {
		opts.Captures = runner.MemoryCaptures()
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Orchestrator{opts: opts, log: opts.Log}, nil
}

// Run executes every point and returns the finalized result. Runs that time
// out, fail or emit no events are recorded with sentinel metrics and the
// sweep continues. Results reach writers in input order. When ctx is
// cancelled the sweep stops and the completed prefix is returned with
// ctx.Err(). If no run is usable the result comes with ErrSweepExhausted.
func (o *Orchestrator) Run(ctx context.Context, points []Point) (*Result, error) {
	acc := &accumulator{res: &Result{
		ID:         uuid.NewString(),
		Name:       o.opts.Name,
		ParamNames: ParamNames(points),
		StartedAt:  time.Now(),
	}}
	info := SweepInfo{ID: acc.res.ID, Name: acc.res.Name, ParamNames: acc.res.ParamNames, Points: len(points), StartedAt: acc.res.StartedAt}
	o.log.Info("[Sweep] starting", "sweep", info.Name, "id", info.ID, "points", info.Points, "parallelism", o.opts.Parallelism)
	if o.opts.Writer != nil {
		if err := startSweep(o.opts.Writer, info); err != nil {
			o.log.Warn("[Sweep] writer rejected sweep start", "err", err)
		}
	}

	emit := func(r RunResult) {
		acc.add(r)
		if o.opts.Writer == nil {
			return
		}
		if err := o.opts.Writer.WriteResult(r); err != nil {
			o.log.Warn("[Sweep] writer failed", "index", r.Index, "err", err)
		}
	}

	if o.opts.Parallelism == 1 {
		o.runSequential(ctx, acc.res.ID, points, emit)
	} else {
		o.runParallel(ctx, acc.res.ID, points, emit)
	}

	res := acc.finalize(time.Now())
	if o.opts.Writer != nil {
		if err := endSweep(o.opts.Writer, res); err != nil {
			o.log.Warn("[Sweep] writer rejected sweep end", "err", err)
		}
	}
	counts := res.Counts()
	o.log.Info("[Sweep] finished", "sweep", res.Name, "runs", res.Len(), "ok", counts[StatusOK],
		"timeout", counts[StatusTimeout], "failed", counts[StatusFailed], "no_events", counts[StatusNoEvents],
		"elapsed", res.FinishedAt.Sub(res.StartedAt))

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if counts[StatusOK] == 0 {
		return res, ErrSweepExhausted
	}
	return res, nil
}

func (o *Orchestrator) runSequential(ctx context.Context, sweepID string, points []Point, emit func(RunResult)) {
	for i, p := range points {
		if ctx.Err() != nil {
			return
		}
		r, ok := o.runPoint(ctx, sweepID, i, p)
		if !ok {
			return
		}
		emit(r)
	}
}

type outcome struct {
	index int
	run   RunResult
	ok    bool
}

// runParallel spreads points over a worker pool and flushes them through a
// reorder buffer so emit sees input order. The first interrupted run ends the
// flushed prefix.
func (o *Orchestrator) runParallel(ctx context.Context, sweepID string, points []Point, emit func(RunResult)) {
	wp := workerpool.New(o.opts.Parallelism)
	done := make(chan outcome, len(points))
	for i, p := range points {
		wp.Submit(func() {
			if ctx.Err() != nil {
				done <- outcome{index: i}
				return
			}
			r, ok := o.runPoint(ctx, sweepID, i, p)
			done <- outcome{index: i, run: r, ok: ok}
		})
	}

	pending := make(map[int]outcome)
	next, broken := 0, false
	for range points {
		oc := <-done
		pending[oc.index] = oc
		for !broken {
			head, ready := pending[next]
			if !ready {
				break
			}
			delete(pending, next)
			if !head.ok {
				broken = true
				break
			}
			emit(head.run)
			next++
		}
	}
	wp.StopWait()
}

// runPoint executes one point. ok is false when ctx was cancelled mid-run;
// such a run is not recorded.
func (o *Orchestrator) runPoint(ctx context.Context, sweepID string, index int, p Point) (RunResult, bool) {
	r := RunResult{SweepID: sweepID, Sweep: o.opts.Name, Index: index, Point: p, StartedAt: time.Now()}
	log := o.log.With("index", index, "point", p.String())

	fail := func(status Status, err error) (RunResult, bool) {
		r.Status = status
		r.Error = err.Error()
		r.applySentinel()
		r.Duration = time.Since(r.StartedAt)
		log.Warn("[Sweep] run unusable", "status", status, "err", err)
		return r, true
	}

	data := p.Map()
	data["index"] = strconv.Itoa(index)
	data["sweep"] = o.opts.Name
	inv, err := o.opts.Template.Render(data, o.opts.Timeout)
	if err != nil {
		return fail(StatusFailed, err)
	}

	capture, err := o.opts.Captures(index, p.String())
	if err != nil {
		return fail(StatusFailed, fmt.Errorf("open capture: %w", err))
	}
	defer capture.Close()
	r.Capture = capture.Location()

	log.Debug("[Sweep] running", "command", inv.Command)
	unlock := o.locks.Lock(runner.ArtifactPath(inv))
	runErr := o.opts.Runner.Run(ctx, inv, capture)
	unlock()
	if ctx.Err() != nil {
		log.Info("[Sweep] run interrupted", "err", ctx.Err())
		return r, false
	}

	analysis, err := o.analyzeCapture(capture)
	if analysis != nil {
		ext := analysis.Extraction
		r.TxCount, r.RxCount, r.SkippedLines = len(ext.Sent), len(ext.Received), ext.Skipped
		r.Reported = ext.Reported
		if ext.Skipped > 0 {
			log.Info("[Sweep] skipped malformed lines", "skipped", ext.Skipped)
		}
	}

	switch {
	case errors.Is(runErr, runner.ErrTimeout):
		return fail(StatusTimeout, runErr)
	case runErr != nil:
		return fail(StatusFailed, runErr)
	case err != nil:
		return fail(StatusFailed, err)
	case analysis.Extraction.Events() == 0:
		return fail(StatusNoEvents, errors.New("no send or receive events in output"))
	}

	s := analysis.Summary
	r.Status = StatusOK
	r.ThroughputMbps = s.ThroughputMbps
	r.MeanLatencyMs = s.MeanLatencyMs
	r.LatencyP50Ms = s.LatencyP50Ms
	r.LatencyP95Ms = s.LatencyP95Ms
	r.LossRatePct = s.LossRatePct
	r.PDRPct = s.PDRPct
	r.Pairs = s.Pairs
	r.Duration = time.Since(r.StartedAt)
	log.Info("[Sweep] run finished", "status", r.Status, "throughput_mbps", r.ThroughputMbps,
		"latency_ms", r.MeanLatencyMs, "loss_pct", r.LossRatePct, "pairs", r.Pairs, "elapsed", r.Duration)
	return r, true
}

func (o *Orchestrator) analyzeCapture(c runner.Capture) (*Analysis, error) {
	rc, err := c.Open()
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	defer rc.Close()
	return Analyze(rc, o.opts.Extractor, o.opts.DefaultSize)
}
