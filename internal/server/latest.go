package server

import (
	"sync"

	"github.com/marcus/stbar/internal/poller"
)

// Latest is a poller.Sink remembering the most recent outcome.
type Latest struct {
	mu  sync.RWMutex
	o   poller.Outcome
	set bool
}

// Publish implements poller.Sink.
func (l *Latest) Publish(o poller.Outcome) {
	l.mu.Lock()
	l.o, l.set = o, true
	l.mu.Unlock()
}

// Get returns the last outcome and whether one has been published.
func (l *Latest) Get() (poller.Outcome, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.o, l.set
}
