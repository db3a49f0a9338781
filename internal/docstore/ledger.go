package docstore

import (
	"sync"

	"github.com/evhart/bivouac/pkg/domain"
)

// Ledger counts pending self-writes per document key so the host can tell
// "I just wrote this" apart from "someone else changed this".
//
// Each Mark is absorbed by exactly one notification. A backend that fans one
// write out to several notifications will have the extras treated as
// external changes; the shipped backends emit one notification per write.
//
// Marks come from whichever goroutine performs the write (bus loop, host
// API, HTTP handler); absorbs come from the host loop. Counts never go
// negative: Absorb on an unmarked key is a miss, not a decrement.
type Ledger struct {
	mu      sync.Mutex
	pending map[domain.DocName]int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{pending: make(map[domain.DocName]int)}
}

// Mark records an imminent self-write for the key.
func (l *Ledger) Mark(key domain.DocName) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending[key]++
}

// Absorb consumes one pending mark for the key. It reports whether a mark
// was present, i.e. whether the notification was self-caused.
func (l *Ledger) Absorb(key domain.DocName) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	n, ok := l.pending[key]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(l.pending, key)
	} else {
		l.pending[key] = n - 1
	}
	return true
}

// Pending returns the outstanding mark count for the key.
func (l *Ledger) Pending(key domain.DocName) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending[key]
}
