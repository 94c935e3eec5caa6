package mock

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viant/authsession/internal/collection"
)

const (
	RegisterPath = "/auth/register"
	LoginPath    = "/auth/login"
	RefreshPath  = "/auth/refresh"
	ValidatePath = "/auth/validate"
)

type user struct {
	ID       string
	Username string
	Email    string
	Password []byte
}

// AuthService is a test server that simulates the remote auth service
type AuthService struct {
	Secret           []byte
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	SingleUseRefresh bool

	RegisterHandler func(w http.ResponseWriter, r *http.Request)
	LoginHandler    func(w http.ResponseWriter, r *http.Request)
	RefreshHandler  func(w http.ResponseWriter, r *http.Request)
	ValidateHandler func(w http.ResponseWriter, r *http.Request)

	mu      sync.Mutex
	users   map[string]*user
	revoked *collection.SyncMap[string, bool]
	issued  *collection.SyncMap[string, string]
	calls   *collection.SyncMap[string, *atomic.Int32]
}

type Option func(*AuthService)

// WithTTL sets token lifetimes
func WithTTL(access, refresh time.Duration) Option {
	return func(s *AuthService) {
		s.AccessTTL = access
		s.RefreshTTL = refresh
	}
}

// WithSingleUseRefresh rejects refresh tokens presented more than once
func WithSingleUseRefresh() Option {
	return func(s *AuthService) {
		s.SingleUseRefresh = true
	}
}

// NewAuthService creates a new mock auth service
func NewAuthService(opts ...Option) *AuthService {
	service := &AuthService{
		Secret:     []byte("test-secret"),
		AccessTTL:  15 * time.Second,
		RefreshTTL: time.Minute,
		users:      map[string]*user{},
		revoked:    collection.NewSyncMap[string, bool](),
		issued:     collection.NewSyncMap[string, string](),
		calls:      collection.NewSyncMap[string, *atomic.Int32](),
	}
	for _, path := range []string{RegisterPath, LoginPath, RefreshPath, ValidatePath} {
		service.calls.Put(path, &atomic.Int32{})
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Calls returns number of requests served by endpoint path
func (s *AuthService) Calls(path string) int {
	if counter, ok := s.calls.Get(path); ok {
		return int(counter.Load())
	}
	return 0
}

// ExpireAccessTokens makes every access token issued so far invalid, as if it had expired
func (s *AuthService) ExpireAccessTokens() {
	s.issued.Range(func(id string, tokenType string) bool {
		if tokenType == accessType {
			s.revoked.Put(id, true)
		}
		return true
	})
}

// RevokeRefreshTokens makes every refresh token issued so far invalid
func (s *AuthService) RevokeRefreshTokens() {
	s.issued.Range(func(id string, tokenType string) bool {
		if tokenType == refreshType {
			s.revoked.Put(id, true)
		}
		return true
	})
}

// Handler returns an http.Handler for all mock endpoints, suitable for any HTTP server.
func (s *AuthService) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", &Handler{Server: s})
	return mux
}
