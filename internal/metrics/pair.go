// Package metrics pairs send and receive events and derives delivery metrics.
package metrics

import (
	"cmp"
	"slices"

	"netsim-sweep/internal/trace"
)

// DefaultPacketSize is attributed to a pair whose send event carries no size.
const DefaultPacketSize = 1024

// Pair is one send correlated with a later receive.
type Pair struct {
	SendTime    float64 `json:"send_time"`
	ReceiveTime float64 `json:"receive_time"`
	SizeBytes   int     `json:"size_bytes"`
}

// LatencyMs returns the pair's one-way delay in milliseconds.
func (p Pair) LatencyMs() float64 {
	return (p.ReceiveTime - p.SendTime) * 1000
}

// SortSent returns a copy of sent ordered by timestamp. Sizes travel with
// their timestamps; equal timestamps keep emission order.
func SortSent(sent []trace.SendEvent) []trace.SendEvent {
	out := slices.Clone(sent)
	slices.SortStableFunc(out, func(a, b trace.SendEvent) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
	return out
}

// SortReceived returns a sorted copy of the receive timestamps.
func SortReceived(received []float64) []float64 {
	out := slices.Clone(received)
	slices.Sort(out)
	return out
}

// PairPackets correlates sorted sends and receives with a greedy two-pointer
// sweep: a receive is paired with the oldest unpaired send if that send is
// strictly earlier, otherwise the receive is dropped as an orphan.
//
// This is a temporal heuristic, not identity matching. It assumes FIFO
// end-to-end delivery and will mis-pair when several packets are in flight
// and overtake each other. Callers must pass both inputs sorted ascending.
//
// A pair's size is the size of the send it was paired with, as ordered by
// SortSent. When sends are emitted out of timestamp order this differs from
// taking the k-th emitted size for the k-th pair; the size stays with its
// own send line.
func PairPackets(sent []trace.SendEvent, received []float64, defaultSize int) []Pair {
	n := min(len(sent), len(received))
	if n == 0 {
		return nil
	}
	pairs := make([]Pair, 0, n)
	i, j := 0, 0
	for i < len(sent) && j < len(received) {
		if sent[i].Timestamp < received[j] {
			size := defaultSize
			if sent[i].HasSize {
				size = sent[i].SizeBytes
			}
			pairs = append(pairs, Pair{SendTime: sent[i].Timestamp, ReceiveTime: received[j], SizeBytes: size})
			i++
			j++
			continue
		}
		j++
	}
	return pairs
}
