package trace

import (
	"regexp"
	"strconv"
)

// Reported holds the statistics a simulator prints about itself, such as an
// ns-3 FlowMonitor summary. They are kept next to the computed metrics for
// comparison only.
type Reported struct {
	LostPackets    *int64   `json:"lost_packets,omitempty"`
	ThroughputKbps *float64 `json:"throughput_kbps,omitempty"`
	PDRPct         *float64 `json:"pdr_pct,omitempty"`
	MeanDelayMs    *float64 `json:"mean_delay_ms,omitempty"`
}

// Empty reports whether no statistic was found.
func (r *Reported) Empty() bool {
	return r == nil || (r.LostPackets == nil && r.ThroughputKbps == nil && r.PDRPct == nil && r.MeanDelayMs == nil)
}

var (
	reLost       = regexp.MustCompile(`Total Packets Lost:\s*(\d+)`)
	reThroughput = regexp.MustCompile(`Throughput:\s*([\d.]+)\s*Kbps`)
	rePDR        = regexp.MustCompile(`Packets Delivery Ratio:\s*([\d.]+)\s*%`)
	reMeanDelay  = regexp.MustCompile(`Mean Delay:\s*([\d.]+)\s*ms`)
)

// scanReported updates r from one line. The first occurrence of each
// statistic wins, matching how the summary is printed once per run.
func scanReported(r *Reported, line string) {
	if r.LostPackets == nil {
		if m := reLost.FindStringSubmatch(line); m != nil {
			if v, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				r.LostPackets = &v
			}
		}
	}
	if r.ThroughputKbps == nil {
		r.ThroughputKbps = firstFloat(reThroughput, line)
	}
	if r.PDRPct == nil {
		r.PDRPct = firstFloat(rePDR, line)
	}
	if r.MeanDelayMs == nil {
		r.MeanDelayMs = firstFloat(reMeanDelay, line)
	}
}

func firstFloat(re *regexp.Regexp, line string) *float64 {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}
