package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"netsim-sweep/internal/sweep"
	"netsim-sweep/internal/trace"
)

const echoLog = `At time +1s client sent 1024 bytes to 10.1.2.4 port 9
At time +1.5s client received 1024 bytes from 10.1.2.4 port 9
At time +2s client sent 1024 bytes to 10.1.2.4 port 9
At time +2.5s client received 1024 bytes from 10.1.2.4 port 9
At time +3s client sent 1024 bytes to 10.1.2.4 port 9
  Packets Delivery Ratio: 66.67%
`

func analyzeEcho(t *testing.T) *sweep.Analysis {
	t.Helper()
	a, err := sweep.Analyze(strings.NewReader(echoLog), trace.NewExtractor(nil, nil), 0)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return a
}

func TestWriteAnalysisJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := writeAnalysis(&buf, "run.log", "ns3-udp-echo", analyzeEcho(t), true, false); err != nil {
		t.Fatalf("writeAnalysis: %v", err)
	}
	var rep analysisReport
	if err := json.Unmarshal(buf.Bytes(), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Summary.TxCount != 3 || rep.Summary.RxCount != 2 || rep.Summary.Pairs != 2 {
		t.Fatalf("unexpected counts %+v", rep.Summary)
	}
	if rep.Summary.MeanLatencyMs != 500 {
		t.Fatalf("latency = %v, want 500", rep.Summary.MeanLatencyMs)
	}
	if rep.Summary.LatenciesMs != nil || rep.Summary.Throughput != nil {
		t.Fatalf("series included without --series")
	}
	if rep.Reported == nil || rep.Reported.PDRPct == nil || *rep.Reported.PDRPct != 66.67 {
		t.Fatalf("reported = %+v", rep.Reported)
	}
}

func TestWriteAnalysisText(t *testing.T) {
	var buf bytes.Buffer
	if err := writeAnalysis(&buf, "run.log", "ns3-udp-echo", analyzeEcho(t), false, true); err != nil {
		t.Fatalf("writeAnalysis: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"3 / 2 / 2", "0.0082 Mbps", "reported delivery ratio", "latency_ms", "throughput_mbps"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
