package sweep

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
)

// metricColumns follow the parameter columns in every CSV row.
var metricColumns = []string{
	"status", "throughput_mbps", "mean_latency_ms", "loss_rate_pct", "pdr_pct",
	"tx_count", "rx_count", "pairs", "skipped_lines", "latency_p50_ms", "latency_p95_ms",
	"duration_s", "error",
}

// CSVWriter writes one row per run. Parameter columns come from the sweep
// announcement, or from the first result when none was announced.
type CSVWriter struct {
	w      *csv.Writer
	closer io.Closer
	params []string
	header bool
}

// NewCSVWriter creates or truncates path.
func NewCSVWriter(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := newCSVWriter(f)
	w.closer = f
	return w, nil
}

func newCSVWriter(out io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(out)}
}

func (c *CSVWriter) StartSweep(info SweepInfo) error {
	if !c.header {
		c.params = append([]string(nil), info.ParamNames...)
	}
	return nil
}

// WriteResult appends a row and flushes it.
func (c *CSVWriter) WriteResult(r RunResult) error {
	if err := c.writeHeader(r); err != nil {
		return err
	}
	if err := c.w.Write(c.row(r)); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *CSVWriter) writeHeader(first RunResult) error {
	if c.header {
		return nil
	}
	if c.params == nil {
		c.params = first.Point.Names()
	}
	c.header = true
	return c.w.Write(append(append([]string(nil), c.params...), metricColumns...))
}

func (c *CSVWriter) row(r RunResult) []string {
	row := make([]string, 0, len(c.params)+len(metricColumns))
	for _, name := range c.params {
		v, _ := r.Point.Get(name)
		row = append(row, v)
	}
	return append(row,
		string(r.Status),
		formatFloat(r.ThroughputMbps),
		formatFloat(r.MeanLatencyMs),
		formatFloat(r.LossRatePct),
		formatFloat(r.PDRPct),
		strconv.Itoa(r.TxCount),
		strconv.Itoa(r.RxCount),
		strconv.Itoa(r.Pairs),
		strconv.Itoa(r.SkippedLines),
		formatFloat(r.LatencyP50Ms),
		formatFloat(r.LatencyP95Ms),
		formatFloat(r.Duration.Seconds()),
		r.Error,
	)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Close flushes and closes the file.
func (c *CSVWriter) Close() error {
	c.w.Flush()
	err := c.w.Error()
	if c.closer != nil {
		if cerr := c.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
