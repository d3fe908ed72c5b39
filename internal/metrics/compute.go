package metrics

import (
	"github.com/montanaflynn/stats"
)

// ThroughputSample is the rate observed between two consecutive receives.
// At is the earlier receive time in seconds.
type ThroughputSample struct {
	At   float64 `json:"at"`
	Mbps float64 `json:"mbps"`
}

// Summary is the metric set derived from one run.
type Summary struct {
	Pairs          int     `json:"pairs"`
	TxCount        int     `json:"tx_count"`
	RxCount        int     `json:"rx_count"`
	MeanLatencyMs  float64 `json:"mean_latency_ms"`
	LatencyP50Ms   float64 `json:"latency_p50_ms"`
	LatencyP95Ms   float64 `json:"latency_p95_ms"`
	ThroughputMbps float64 `json:"throughput_mbps"`
	LossRatePct    float64 `json:"loss_rate_pct"`
	PDRPct         float64 `json:"pdr_pct"`

	LatenciesMs []float64          `json:"latencies_ms,omitempty"`
	Throughput  []ThroughputSample `json:"throughput,omitempty"`
}

// Compute derives latency, throughput, loss rate and delivery ratio from the
// pairs of one run and its raw send/receive counts. pairs must be in receive
// order, as produced by PairPackets; it is not modified.
//
// With no pairs but txCount > 0 the run is read as total loss: latency and
// throughput are 0, loss is 100% and PDR 0%. With txCount == 0 both
// percentages are 0. Loss rate may be negative when more receives than sends
// were captured; use ClampPercent for display.
func Compute(pairs []Pair, txCount, rxCount int) Summary {
	s := Summary{Pairs: len(pairs), TxCount: txCount, RxCount: rxCount}

	if len(pairs) == 0 {
		if txCount > 0 {
			s.LossRatePct = 100
		}
		return s
	}

	s.LatenciesMs = make([]float64, len(pairs))
	for i, p := range pairs {
		s.LatenciesMs[i] = p.LatencyMs()
	}
	s.MeanLatencyMs = mean(s.LatenciesMs)
	s.LatencyP50Ms = percentile(s.LatenciesMs, 50)
	s.LatencyP95Ms = percentile(s.LatenciesMs, 95)

	s.Throughput = throughputSeries(pairs)
	rates := make([]float64, len(s.Throughput))
	for i, t := range s.Throughput {
		rates[i] = t.Mbps
	}
	s.ThroughputMbps = mean(rates)

	if txCount > 0 {
		s.LossRatePct = 100 * float64(txCount-rxCount) / float64(txCount)
		s.PDRPct = 100 * float64(rxCount) / float64(txCount)
	}
	return s
}

// throughputSeries credits the bytes of pair k-1 to the gap between receive
// k-1 and receive k. Non-positive gaps are skipped.
func throughputSeries(pairs []Pair) []ThroughputSample {
	var out []ThroughputSample
	for k := 1; k < len(pairs); k++ {
		dt := pairs[k].ReceiveTime - pairs[k-1].ReceiveTime
		if dt <= 0 {
			continue
		}
		bps := float64(pairs[k-1].SizeBytes) * 8 / dt
		out = append(out, ThroughputSample{At: pairs[k-1].ReceiveTime, Mbps: bps / 1e6})
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m, err := stats.Mean(xs)
	if err != nil {
		return 0
	}
	return m
}

func percentile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	v, err := stats.Percentile(xs, p)
	if err != nil {
		return 0
	}
	return v
}

// ClampPercent bounds v to [0, 100] for display.
func ClampPercent(v float64) float64 {
	return min(max(v, 0), 100)
}
