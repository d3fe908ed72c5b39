package sweep

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/muesli/reflow/wordwrap"

	"netsim-sweep/internal/metrics"
)

const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
	colorBlue   = "\x1b[34m"
	colorCyan   = "\x1b[36m"
	colorGray   = "\x1b[90m"
)

const errorWrapWidth = 72

// StdoutWriter prints a line per run and a comparative report at the end.
type StdoutWriter struct {
	out       io.Writer
	color     bool
	clampLoss bool
}

// NewStdoutWriter creates a StdoutWriter on os.Stdout. clampLoss bounds
// displayed loss and delivery ratios to [0, 100].
func NewStdoutWriter(color, clampLoss bool) *StdoutWriter {
	return &StdoutWriter{out: os.Stdout, color: color, clampLoss: clampLoss}
}

func (w *StdoutWriter) paint(color, s string) string {
	if !w.color {
		return s
	}
	return color + s + colorReset
}

func statusColor(s Status) string {
	switch s {
	case StatusOK:
		return colorGreen
	case StatusTimeout:
		return colorYellow
	default:
		return colorRed
	}
}

func (w *StdoutWriter) pct(v float64) float64 {
	if w.clampLoss {
		return metrics.ClampPercent(v)
	}
	return v
}

func (w *StdoutWriter) StartSweep(info SweepInfo) error {
	fmt.Fprintf(w.out, "%s %d points, parameters %s\n",
		w.paint(colorBlue, "sweep "+info.Name), info.Points, strings.Join(info.ParamNames, ", "))
	return nil
}

// WriteResult prints a single run.
func (w *StdoutWriter) WriteResult(r RunResult) error {
	fmt.Fprintf(w.out, "%s %s %s tput=%.4fMbps lat=%.2fms loss=%.2f%% pdr=%.2f%% tx=%d rx=%d",
		w.paint(colorGray, fmt.Sprintf("[%03d]", r.Index)),
		w.paint(colorCyan, r.Point.String()),
		w.paint(statusColor(r.Status), string(r.Status)),
		r.ThroughputMbps, r.MeanLatencyMs, w.pct(r.LossRatePct), w.pct(r.PDRPct), r.TxCount, r.RxCount)
	if r.SkippedLines > 0 {
		fmt.Fprintf(w.out, " skipped=%d", r.SkippedLines)
	}
	fmt.Fprintln(w.out)
	if r.Error != "" {
		for _, line := range strings.Split(wordwrap.String(r.Error, errorWrapWidth), "\n") {
			fmt.Fprintf(w.out, "      %s\n", w.paint(colorGray, line))
		}
	}
	return nil
}

// EndSweep prints the table of all runs and the best and worst points.
func (w *StdoutWriter) EndSweep(res *Result) error {
	fmt.Fprintf(w.out, "\nSweep %s (%s) finished in %s\n", res.Name, res.ID, res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tPoint\tStatus\tThroughput (Mbps)\tLatency (ms)\tp95 (ms)\tLoss (%)\tPDR (%)\tTx\tRx")
	for _, r := range res.Runs() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.4f\t%.2f\t%.2f\t%.2f\t%.2f\t%d\t%d\n",
			r.Index, r.Point, r.Status, r.ThroughputMbps, r.MeanLatencyMs, r.LatencyP95Ms,
			w.pct(r.LossRatePct), w.pct(r.PDRPct), r.TxCount, r.RxCount)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	counts := res.Counts()
	fmt.Fprintf(w.out, "\nok=%d timeout=%d failed=%d no_events=%d\n",
		counts[StatusOK], counts[StatusTimeout], counts[StatusFailed], counts[StatusNoEvents])
	bestT, bestL, ok := res.Best()
	if !ok {
		fmt.Fprintln(w.out, w.paint(colorRed, "no usable runs"))
		return nil
	}
	worstT, worstL, _ := res.Worst()
	tw = tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Best throughput:\t%s\t%.4f Mbps\n", bestT.Point, bestT.ThroughputMbps)
	fmt.Fprintf(tw, "Worst throughput:\t%s\t%.4f Mbps\n", worstT.Point, worstT.ThroughputMbps)
	fmt.Fprintf(tw, "Lowest loss:\t%s\t%.2f %%\n", bestL.Point, w.pct(bestL.LossRatePct))
	fmt.Fprintf(tw, "Highest loss:\t%s\t%.2f %%\n", worstL.Point, w.pct(worstL.LossRatePct))
	return tw.Flush()
}
