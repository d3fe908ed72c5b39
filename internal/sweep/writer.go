package sweep

// ResultWriter receives each RunResult as soon as it is final.
type ResultWriter interface {
	WriteResult(RunResult) error
}

// batchResultWriter is implemented by writers that prefer batches.
type batchResultWriter interface {
	WriteResults([]RunResult) error
}

// SweepStartWriter is notified before the first run.
type SweepStartWriter interface {
	StartSweep(SweepInfo) error
}

// SweepEndWriter is notified once the sweep has been finalized.
type SweepEndWriter interface {
	EndSweep(*Result) error
}

// WriteResults sends rows to w, using its batch method when available.
func WriteResults(w ResultWriter, rows []RunResult) error {
	if bw, ok := w.(batchResultWriter); ok {
		return bw.WriteResults(rows)
	}
	for _, r := range rows {
		if err := w.WriteResult(r); err != nil {
			return err
		}
	}
	return nil
}

func startSweep(w ResultWriter, info SweepInfo) error {
	if sw, ok := w.(SweepStartWriter); ok {
		return sw.StartSweep(info)
	}
	return nil
}

func endSweep(w ResultWriter, res *Result) error {
	if ew, ok := w.(SweepEndWriter); ok {
		return ew.EndSweep(res)
	}
	return nil
}
