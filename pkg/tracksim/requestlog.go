package tracksim

import (
	"slices"
	"sync"
	"time"
)

// RequestEntry records one API call accepted by the simulator, including
// rejected authentication attempts.
type RequestEntry struct {
	Time   time.Time
	Method string
	// Path includes the query string.
	Path   string
	Status int
}

// requestLog is the append-only audit trail of a session. Entries are never
// mutated after append.
type requestLog struct {
	mu      sync.Mutex
	entries []RequestEntry
}

func (l *requestLog) append(e RequestEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

func (l *requestLog) all() []RequestEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

func (l *requestLog) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
