package sweep

import (
	"io"

	"netsim-sweep/internal/metrics"
	"netsim-sweep/internal/trace"
)

// Analysis is the full pipeline output for one capture.
type Analysis struct {
	Extraction *trace.Extraction
	Pairs      []metrics.Pair
	Summary    metrics.Summary
}

// Analyze extracts events from r, sorts and pairs them and computes the
// summary. The returned Analysis is valid even when err is a read error; it
// covers everything read before the failure.
func Analyze(r io.Reader, x *trace.Extractor, defaultSize int) (*Analysis, error) {
	if x == nil {
		x = trace.NewExtractor(nil, nil)
	}
	if defaultSize <= 0 {
		defaultSize = metrics.DefaultPacketSize
	}
	ext, err := x.Extract(r)
	pairs := metrics.PairPackets(metrics.SortSent(ext.Sent), metrics.SortReceived(ext.Received), defaultSize)
	return &Analysis{
		Extraction: ext,
		Pairs:      pairs,
		Summary:    metrics.Compute(pairs, len(ext.Sent), len(ext.Received)),
	}, err
}
