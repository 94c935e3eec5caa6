package session

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/viant/authsession/internal/collection"
	"golang.org/x/sync/singleflight"
)

// DefaultFreshness is how long a derived state is served from cache
const DefaultFreshness = 5 * time.Minute

// State represents the session authentication state
type State int

const (
	StateUnknown State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	}
	return "unknown"
}

// Authenticated returns true for StateAuthenticated
func (s State) Authenticated() bool {
	return s == StateAuthenticated
}

// Event is emitted on state transitions into StateUnauthenticated
type Event struct {
	State    State
	Previous State
}

// Deriver computes whether the session is authenticated
type Deriver func(ctx context.Context) (bool, error)

// Signal is a cached, lazily revalidated authentication state.
type Signal struct {
	mu         sync.RWMutex
	state      State
	checkedAt  time.Time
	stale      bool
	generation uint64
	assigned   uint64
	freshness  time.Duration
	derive     Deriver
	now        func() time.Time
	inFlight   atomic.Int32
	group      singleflight.Group
	listeners  *collection.SyncMap[string, func(Event)]
}

// Get returns cached state while fresh, otherwise derives it.
func (s *Signal) Get(ctx context.Context) (State, error) {
	s.mu.RLock()
	state, fresh := s.state, s.isFresh()
	s.mu.RUnlock()
	if fresh {
		return state, nil
	}
	return s.Refetch(ctx)
}

// Loading reports whether the first derivation is still in progress.
func (s *Signal) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateUnknown && s.inFlight.Load() > 0
}

// Peek returns the cached state without deriving it
func (s *Signal) Peek() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Refetch derives the state regardless of freshness; concurrent callers share one derivation.
// A derivation error is returned and the cached state is left untouched.
func (s *Signal) Refetch(ctx context.Context) (State, error) {
	s.mu.RLock()
	generation := s.generation
	s.mu.RUnlock()
	ch := s.group.DoChan(strconv.FormatUint(generation, 10), func() (interface{}, error) {
		s.inFlight.Add(1)
		defer s.inFlight.Add(-1)
		authenticated, err := s.derive(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		state := StateUnauthenticated
		if authenticated {
			state = StateAuthenticated
		}
		return s.commit(generation, state), nil
	})
	select {
	case <-ctx.Done():
		return s.Peek(), ctx.Err()
	case result := <-ch:
		if result.Err != nil {
			return s.Peek(), result.Err
		}
		return result.Val.(State), nil
	}
}

// Invalidate forces re-derivation on the next Get.
func (s *Signal) Invalidate() {
	s.mu.Lock()
	s.stale = true
	s.generation++
	s.mu.Unlock()
}

// Set sets the state immediately, overriding any derivation in flight.
func (s *Signal) Set(state State) {
	s.mu.Lock()
	s.generation++
	s.assigned = s.generation
	generation := s.generation
	s.mu.Unlock()
	s.commit(generation, state)
}

// Subscribe registers a listener for transitions into StateUnauthenticated.
// Listeners are called synchronously and must not block.
func (s *Signal) Subscribe(listener func(Event)) func() {
	id := uuid.NewString()
	s.listeners.Put(id, listener)
	return func() { s.listeners.Delete(id) }
}

// commit stores state derived at generation, a result outdated by Set or Invalidate is not cached.
// The caller gets the state assigned by a later Set, otherwise its own derived state.
func (s *Signal) commit(generation uint64, state State) State {
	s.mu.Lock()
	if generation != s.generation {
		if s.assigned > generation {
			state = s.state
		}
		s.mu.Unlock()
		return state
	}
	previous := s.state
	s.state = state
	s.checkedAt = s.now()
	s.stale = false
	s.mu.Unlock()
	if state == StateUnauthenticated && previous != StateUnauthenticated {
		event := Event{State: state, Previous: previous}
		s.listeners.Range(func(_ string, listener func(Event)) bool {
			listener(event)
			return true
		})
	}
	return state
}

func (s *Signal) isFresh() bool {
	return s.state != StateUnknown && !s.stale && s.now().Sub(s.checkedAt) < s.freshness
}

// NewSignal creates a signal; freshness <= 0 uses DefaultFreshness
func NewSignal(derive Deriver, freshness time.Duration) *Signal {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return &Signal{
		derive:    derive,
		freshness: freshness,
		now:       time.Now,
		listeners: collection.NewSyncMap[string, func(Event)](),
	}
}
