package session

import (
	"sync"
	"time"
)

// Mutation is a snapshot of an operation status as consumed by the UI layer.
type Mutation struct {
	Pending     bool
	Err         error
	SucceededAt time.Time
}

type mutation struct {
	mu          sync.RWMutex
	pending     int
	err         error
	succeededAt time.Time
}

func (m *mutation) begin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending++
	m.err = nil
}

func (m *mutation) end(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending--
	m.err = err
	if err == nil {
		m.succeededAt = time.Now()
	}
}

func (m *mutation) snapshot() Mutation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Mutation{Pending: m.pending > 0, Err: m.err, SucceededAt: m.succeededAt}
}
