package runner

import "sync"

// PathLocks serialises runs that share an output artifact path.
type PathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Lock blocks until path is free and returns the matching unlock. An empty
// path is never contended.
func (l *PathLocks) Lock(path string) func() {
	if path == "" {
		return func() {}
	}
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[path]
	if !ok {
		m = &sync.Mutex{}
		l.locks[path] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
