package admin

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"netsim-sweep/internal/sweep"
)

func newTestServer(t *testing.T) (*Server, *sweep.Tracker) {
	t.Helper()
	tracker := sweep.NewTracker()
	reg := prometheus.NewRegistry()
	prom, err := sweep.NewPromWriter(reg)
	if err != nil {
		t.Fatalf("prom writer: %v", err)
	}
	w := sweep.NewMultiWriter(tracker, prom)
	info := sweep.SweepInfo{ID: "s1", Name: "manet-size", ParamNames: []string{"size"}, Points: 3, StartedAt: time.Now()}
	if err := w.StartSweep(info); err != nil {
		t.Fatalf("start: %v", err)
	}
	runs := []sweep.RunResult{
		{SweepID: "s1", Sweep: "manet-size", Index: 0, Point: sweep.NewPoint(sweep.Param{Name: "size", Value: "10"}),
			Status: sweep.StatusOK, ThroughputMbps: 0.25, LossRatePct: 10, PDRPct: 90, TxCount: 10, RxCount: 9},
		{SweepID: "s1", Sweep: "manet-size", Index: 1, Point: sweep.NewPoint(sweep.Param{Name: "size", Value: "20"}),
			Status: sweep.StatusTimeout, LossRatePct: 100, Error: "timed out"},
	}
	for _, r := range runs {
		if err := w.WriteResult(r); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return NewServer(tracker, reg), tracker
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandleStatus(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code %d", rec.Code)
	}
	var p sweep.Progress
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Name != "manet-size" || p.Completed != 2 || p.Total != 3 || !p.Running {
		t.Fatalf("unexpected progress %+v", p)
	}
	if p.Counts[sweep.StatusTimeout] != 1 {
		t.Fatalf("counts = %v", p.Counts)
	}
}

func TestHandleRuns(t *testing.T) {
	s, _ := newTestServer(t)
	var runs []sweep.RunResult
	if err := json.Unmarshal(get(t, s, "/runs").Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 2 || runs[1].Point.String() != "size=20" {
		t.Fatalf("runs = %+v", runs)
	}

	runs = nil
	if err := json.Unmarshal(get(t, s, "/runs?status=ok").Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(runs) != 1 || runs[0].Index != 0 {
		t.Fatalf("filtered runs = %+v", runs)
	}

	if body := get(t, s, "/runs?status=failed").Body.String(); strings.TrimSpace(body) != "[]" {
		t.Fatalf("expected empty list, got %q", body)
	}
}

func TestHandleRun(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/runs/1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code %d", rec.Code)
	}
	var run sweep.RunResult
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if run.Status != sweep.StatusTimeout || run.Error != "timed out" {
		t.Fatalf("run = %+v", run)
	}
	if rec := get(t, s, "/runs/9"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := get(t, s, "/runs/abc"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected unmatched route, got %d", rec.Code)
	}
}

func TestHandleIndexAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	body := get(t, s, "/").Body.String()
	if !strings.Contains(body, "Sweep manet-size") || !strings.Contains(body, "size=20") || !strings.Contains(body, "2/3 points (66%)") {
		t.Fatalf("index page missing content:\n%s", body)
	}
	metrics := get(t, s, "/metrics").Body.String()
	if !strings.Contains(metrics, `netsim_sweep_runs_total{status="ok",sweep="manet-size"} 1`) {
		t.Fatalf("metrics missing run counter:\n%s", metrics)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx, addr) }()

	var resp *http.Response
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://" + addr + "/status")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never came up: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
