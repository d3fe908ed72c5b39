package sweep

import (
	"io"

	"github.com/hashicorp/go-multierror"
)

// MultiWriter fans results out to several writers. A failing writer does not
// stop the others; their errors are combined.
type MultiWriter struct {
	writers []ResultWriter
}

// NewMultiWriter creates a MultiWriter, skipping nil writers.
func NewMultiWriter(ws ...ResultWriter) *MultiWriter {
	mw := &MultiWriter{}
	for _, w := range ws {
		if w != nil {
			mw.writers = append(mw.writers, w)
		}
	}
	return mw
}

// Writers returns the underlying writers.
func (mw *MultiWriter) Writers() []ResultWriter {
	return append([]ResultWriter(nil), mw.writers...)
}

// WriteResult sends a result to all writers.
func (mw *MultiWriter) WriteResult(r RunResult) error {
	var errs error
	for _, w := range mw.writers {
		if err := w.WriteResult(r); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

// WriteResults sends multiple results to all writers, using batch if supported.
func (mw *MultiWriter) WriteResults(rows []RunResult) error {
	var errs error
	for _, w := range mw.writers {
		if err := WriteResults(w, rows); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

func (mw *MultiWriter) StartSweep(info SweepInfo) error {
	var errs error
	for _, w := range mw.writers {
		if err := startSweep(w, info); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

func (mw *MultiWriter) EndSweep(res *Result) error {
	var errs error
	for _, w := range mw.writers {
		if err := endSweep(w, res); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

// Close closes every writer that is an io.Closer.
func (mw *MultiWriter) Close() error {
	var errs *multierror.Error
	for _, w := range mw.writers {
		if c, ok := w.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}
	return errs.ErrorOrNil()
}
