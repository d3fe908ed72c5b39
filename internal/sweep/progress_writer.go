package sweep

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// ProgressWriter shows a terminal progress bar while the sweep runs.
type ProgressWriter struct {
	out io.Writer
	bar *progressbar.ProgressBar
	bad int
}

// NewProgressWriter draws on os.Stderr.
func NewProgressWriter() *ProgressWriter {
	return &ProgressWriter{out: os.Stderr}
}

func (w *ProgressWriter) StartSweep(info SweepInfo) error {
	w.bar = progressbar.NewOptions(info.Points,
		progressbar.OptionSetWriter(w.out),
		progressbar.OptionSetDescription("sweep "+info.Name),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
	)
	return nil
}

// WriteResult advances the bar by one point.
func (w *ProgressWriter) WriteResult(r RunResult) error {
	if w.bar == nil {
		return nil
	}
	if !r.OK() {
		w.bad++
	}
	w.bar.Describe(fmt.Sprintf("%s (%d unusable)", r.Point, w.bad))
	return w.bar.Add(1)
}

func (w *ProgressWriter) EndSweep(*Result) error {
	if w.bar == nil {
		return nil
	}
	err := w.bar.Finish()
	fmt.Fprintln(w.out)
	return err
}
