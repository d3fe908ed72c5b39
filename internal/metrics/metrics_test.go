package metrics

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netsim-sweep/internal/trace"
)

func sends(ts ...float64) []trace.SendEvent {
	out := make([]trace.SendEvent, len(ts))
	for i, t := range ts {
		out[i] = trace.SendEvent{Timestamp: t, SizeBytes: 1024, HasSize: true}
	}
	return out
}

func run(sent []trace.SendEvent, received []float64) ([]Pair, Summary) {
	pairs := PairPackets(SortSent(sent), SortReceived(received), DefaultPacketSize)
	return pairs, Compute(pairs, len(sent), len(received))
}

func TestScenarioA_SinglePair(t *testing.T) {
	// GIVEN one send at 0.0 and one receive at 1.0
	pairs, s := run(sends(0.0), []float64{1.0})

	// THEN one pair with 1000 ms latency and no throughput sample
	require.Len(t, pairs, 1)
	assert.InDelta(t, 1000, s.MeanLatencyMs, 1e-9)
	assert.InDelta(t, 0, s.LossRatePct, 1e-9)
	assert.InDelta(t, 100, s.PDRPct, 1e-9)
	assert.Zero(t, s.ThroughputMbps)
	assert.Empty(t, s.Throughput)
}

func TestScenarioB_NoReceives_TotalLoss(t *testing.T) {
	pairs, s := run(sends(0.0, 0.1), nil)

	assert.Empty(t, pairs)
	assert.Equal(t, 100.0, s.LossRatePct)
	assert.Equal(t, 0.0, s.PDRPct)
	assert.Zero(t, s.MeanLatencyMs)
	assert.Zero(t, s.ThroughputMbps)
}

func TestScenarioC_SteadyFlow(t *testing.T) {
	pairs, s := run(sends(0, 1, 2), []float64{0.5, 1.5, 2.5})

	require.Len(t, pairs, 3)
	assert.Equal(t, []float64{500, 500, 500}, s.LatenciesMs)
	require.Len(t, s.Throughput, 2)
	for _, sample := range s.Throughput {
		assert.InDelta(t, 0.008192, sample.Mbps, 1e-12)
	}
	assert.InDelta(t, 0.008192, s.ThroughputMbps, 1e-12)
	assert.InDelta(t, 500, s.LatencyP50Ms, 1e-9)
	assert.InDelta(t, 500, s.LatencyP95Ms, 1e-9)
}

func TestScenarioD_Empty_NoDivisionByZero(t *testing.T) {
	pairs, s := run(nil, nil)

	assert.Empty(t, pairs)
	assert.Equal(t, 0.0, s.LossRatePct)
	assert.Equal(t, 0.0, s.PDRPct)
}

func TestPairPackets_OrphanReceivesDropped(t *testing.T) {
	// GIVEN receives that precede or equal every pending send
	sent := sends(1.0, 2.0)
	received := []float64{0.5, 1.0, 1.2, 2.0, 2.4}

	pairs := PairPackets(sent, received, DefaultPacketSize)

	want := []Pair{
		{SendTime: 1.0, ReceiveTime: 1.2, SizeBytes: 1024},
		{SendTime: 2.0, ReceiveTime: 2.4, SizeBytes: 1024},
	}
	if diff := cmp.Diff(want, pairs); diff != "" {
		t.Fatalf("pairs mismatch (-want +got):\n%s", diff)
	}
}

func TestPairPackets_SizeAttribution(t *testing.T) {
	sent := []trace.SendEvent{
		{Timestamp: 0, SizeBytes: 200, HasSize: true},
		{Timestamp: 1},
	}
	pairs := PairPackets(sent, []float64{0.1, 1.1}, 1500)
	require.Len(t, pairs, 2)
	assert.Equal(t, 200, pairs[0].SizeBytes)
	assert.Equal(t, 1500, pairs[1].SizeBytes)
}

func TestSortSent_SizesFollowTimestamps(t *testing.T) {
	in := []trace.SendEvent{
		{Timestamp: 3, SizeBytes: 30, HasSize: true},
		{Timestamp: 1, SizeBytes: 10, HasSize: true},
		{Timestamp: 2, SizeBytes: 20, HasSize: true},
	}
	out := SortSent(in)
	assert.Equal(t, []int{10, 20, 30}, []int{out[0].SizeBytes, out[1].SizeBytes, out[2].SizeBytes})
	assert.Equal(t, 3.0, in[0].Timestamp, "input must not be reordered")
}

func TestPairPackets_OutOfOrderSends_SizeStaysWithSend(t *testing.T) {
	// GIVEN sends emitted out of timestamp order with distinct sizes
	emitted := []trace.SendEvent{
		{Timestamp: 3, SizeBytes: 300, HasSize: true},
		{Timestamp: 1, SizeBytes: 100, HasSize: true},
	}

	// WHEN sorted and paired
	pairs := PairPackets(SortSent(emitted), SortReceived([]float64{3.5, 1.5}), 1024)

	// THEN each pair carries the size of its own send, not the k-th emitted size
	require.Len(t, pairs, 2)
	assert.Equal(t, 100, pairs[0].SizeBytes)
	assert.Equal(t, 300, pairs[1].SizeBytes)
}

func TestPairPackets_RandomInputs_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 200; iter++ {
		sent := make([]trace.SendEvent, rng.Intn(30))
		for i := range sent {
			sent[i] = trace.SendEvent{Timestamp: rng.Float64() * 10, SizeBytes: 64 + rng.Intn(1400), HasSize: true}
		}
		received := make([]float64, rng.Intn(30))
		for i := range received {
			received[i] = rng.Float64() * 10
		}

		pairs := PairPackets(SortSent(sent), SortReceived(received), DefaultPacketSize)

		require.LessOrEqual(t, len(pairs), min(len(sent), len(received)))
		for k, p := range pairs {
			require.Less(t, p.SendTime, p.ReceiveTime, "causality")
			if k > 0 {
				require.LessOrEqual(t, pairs[k-1].ReceiveTime, p.ReceiveTime)
				require.LessOrEqual(t, pairs[k-1].SendTime, p.SendTime)
			}
		}

		s := Compute(pairs, len(sent), len(received))
		if len(sent) > 0 {
			require.InDelta(t, 100, s.LossRatePct+s.PDRPct, 1e-9)
		} else {
			require.Zero(t, s.LossRatePct)
			require.Zero(t, s.PDRPct)
		}
		if len(pairs) < 2 {
			require.Zero(t, s.ThroughputMbps)
		}
		for _, l := range s.LatenciesMs {
			require.GreaterOrEqual(t, l, 0.0)
		}
	}
}

func TestCompute_Pure(t *testing.T) {
	pairs := []Pair{
		{SendTime: 0, ReceiveTime: 0.2, SizeBytes: 1000},
		{SendTime: 0.1, ReceiveTime: 0.2, SizeBytes: 1000},
		{SendTime: 0.3, ReceiveTime: 0.7, SizeBytes: 500},
	}
	snapshot := append([]Pair(nil), pairs...)

	first := Compute(pairs, 5, 3)
	for i := 0; i < 3; i++ {
		if diff := cmp.Diff(first, Compute(pairs, 5, 3)); diff != "" {
			t.Fatalf("Compute not deterministic:\n%s", diff)
		}
	}
	assert.Equal(t, snapshot, pairs)

	// zero-delta gap between the first two receives is skipped
	require.Len(t, first.Throughput, 1)
	assert.InDelta(t, 1000*8/0.5/1e6, first.Throughput[0].Mbps, 1e-12)
	assert.InDelta(t, 40, first.LossRatePct, 1e-9)
	assert.InDelta(t, 60, first.PDRPct, 1e-9)
}

func TestCompute_MoreReceivesThanSends_NegativeLossKept(t *testing.T) {
	pairs := []Pair{{SendTime: 0, ReceiveTime: 1, SizeBytes: 1024}}
	s := Compute(pairs, 2, 3)
	assert.InDelta(t, -50, s.LossRatePct, 1e-9)
	assert.InDelta(t, 150, s.PDRPct, 1e-9)
	assert.Equal(t, 0.0, ClampPercent(s.LossRatePct))
	assert.Equal(t, 100.0, ClampPercent(s.PDRPct))
}

func TestCompute_ZeroPairsWithReceives_Degenerate(t *testing.T) {
	// receives exist but none follows a send
	pairs, s := run(sends(5), []float64{1, 2})
	assert.Empty(t, pairs)
	assert.Equal(t, 100.0, s.LossRatePct)
	assert.Equal(t, 0.0, s.PDRPct)
}
