package sweep

import (
	"sync"
	"time"
)

// Progress is a point-in-time view of a sweep for status endpoints.
type Progress struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	ParamNames []string       `json:"param_names"`
	Total      int            `json:"total"`
	Completed  int            `json:"completed"`
	Counts     map[Status]int `json:"counts"`
	Running    bool           `json:"running"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Last       *RunResult     `json:"last,omitempty"`
}

// Tracker records the sweep in flight. It is safe for concurrent readers.
type Tracker struct {
	mu   sync.RWMutex
	info SweepInfo
	runs []RunResult
	done time.Time
	live bool
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker { return &Tracker{} }

func (t *Tracker) StartSweep(info SweepInfo) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.info = info
	t.runs = nil
	t.done = time.Time{}
	t.live = true
	return nil
}

func (t *Tracker) WriteResult(r RunResult) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs = append(t.runs, r)
	return nil
}

func (t *Tracker) EndSweep(res *Result) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = res.FinishedAt
	t.live = false
	return nil
}

// Progress returns a snapshot.
func (t *Tracker) Progress() Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p := Progress{
		ID:         t.info.ID,
		Name:       t.info.Name,
		ParamNames: append([]string(nil), t.info.ParamNames...),
		Total:      t.info.Points,
		Completed:  len(t.runs),
		Counts:     make(map[Status]int),
		Running:    t.live,
		StartedAt:  t.info.StartedAt,
		FinishedAt: t.done,
	}
	for _, r := range t.runs {
		p.Counts[r.Status]++
	}
	if n := len(t.runs); n > 0 {
		last := t.runs[n-1]
		p.Last = &last
	}
	return p
}

// Runs returns a copy of the results recorded so far.
func (t *Tracker) Runs() []RunResult {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]RunResult(nil), t.runs...)
}

// Run returns the result with the given index.
func (t *Tracker) Run(index int) (RunResult, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, r := range t.runs {
		if r.Index == index {
			return r, true
		}
	}
	return RunResult{}, false
}
