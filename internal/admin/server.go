package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"netsim-sweep/internal/sweep"
)

// Server exposes the sweep in flight over HTTP.
type Server struct {
	Tracker  *sweep.Tracker
	Gatherer prometheus.Gatherer
	Log      *slog.Logger
	tpl      *template.Template
	router   *mux.Router
}

//go:embed templates/index.html
var content embed.FS

var funcs = template.FuncMap{
	"pct": func(done, total int) int {
		if total <= 0 {
			return 0
		}
		return done * 100 / total
	},
	"f2": func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
}

func NewServer(tracker *sweep.Tracker, gatherer prometheus.Gatherer) *Server {
	tpl := template.Must(template.New("index.html").Funcs(funcs).ParseFS(content, "templates/index.html"))
	s := &Server{Tracker: tracker, Gatherer: gatherer, Log: slog.Default(), tpl: tpl}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/runs", s.handleRuns).Methods(http.MethodGet)
	r.HandleFunc("/runs/{index:[0-9]+}", s.handleRun).Methods(http.MethodGet)
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
	s.router = r
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.Log.Info("[Admin] listening", "addr", addr)
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Progress sweep.Progress
		Runs     []sweep.RunResult
	}{
		Progress: s.Tracker.Progress(),
		Runs:     s.Tracker.Runs(),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		s.Log.Warn("[Admin] render index", "error", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Tracker.Progress())
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.Tracker.Runs()
	if st := r.URL.Query().Get("status"); st != "" {
		filtered := runs[:0]
		for _, run := range runs {
			if string(run.Status) == st {
				filtered = append(filtered, run)
			}
		}
		runs = filtered
	}
	if runs == nil {
		runs = []sweep.RunResult{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad index"})
		return
	}
	run, ok := s.Tracker.Run(index)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such run"})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
