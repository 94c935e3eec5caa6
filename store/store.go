package store

import (
	"context"
	"sync"

	"github.com/viant/authsession/schema"
)

const (
	// AccessTokenKey is the key of the persisted access token
	AccessTokenKey = "access_token"
	// RefreshTokenKey is the key of the persisted refresh token
	RefreshTokenKey = "refresh_token"
)

// Store is a pluggable persistence layer for the session token pair.
// Both keys are written and cleared together, never individually.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetPair(ctx context.Context, pair *schema.TokenPair) error
	ClearPair(ctx context.Context) error
}

// Pair returns stored token pair, a pair with empty fields when nothing is stored.
func Pair(ctx context.Context, s Store) (*schema.TokenPair, error) {
	ret := &schema.TokenPair{}
	var err error
	if ret.AccessToken, _, err = s.Get(ctx, AccessTokenKey); err != nil {
		return nil, err
	}
	if ret.RefreshToken, _, err = s.Get(ctx, RefreshTokenKey); err != nil {
		return nil, err
	}
	return ret, nil
}

type memoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *memoryStore) SetPair(_ context.Context, pair *schema.TokenPair) error {
	if err := pair.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = map[string]string{
		AccessTokenKey:  pair.AccessToken,
		RefreshTokenKey: pair.RefreshToken,
	}
	return nil
}

func (m *memoryStore) ClearPair(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = map[string]string{}
	return nil
}

// NewMemoryStore creates an in-memory store
func NewMemoryStore() Store {
	return &memoryStore{values: map[string]string{}}
}
