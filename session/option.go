package session

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/viant/authsession/store"
	"github.com/viant/authsession/transport"
)

// Endpoints defines the auth service endpoint paths
type Endpoints struct {
	Register string
	Login    string
	Refresh  string
	Validate string
}

// DefaultEndpoints returns the default endpoint paths
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Register: "/auth/register",
		Login:    "/auth/login",
		Refresh:  transport.DefaultRefreshPath,
		Validate: transport.DefaultValidatePath,
	}
}

type Option func(*Manager)

// WithStore sets credential store
func WithStore(store store.Store) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithTransport sets the base transport
func WithTransport(transport http.RoundTripper) Option {
	return func(m *Manager) {
		m.base = transport
	}
}

// WithBaseURL sets the auth service base URL
func WithBaseURL(baseURL string) Option {
	return func(m *Manager) {
		m.baseURL = baseURL
	}
}

// WithEndpoints overrides endpoint paths, empty fields keep defaults
func WithEndpoints(endpoints Endpoints) Option {
	return func(m *Manager) {
		if endpoints.Register != "" {
			m.endpoints.Register = endpoints.Register
		}
		if endpoints.Login != "" {
			m.endpoints.Login = endpoints.Login
		}
		if endpoints.Refresh != "" {
			m.endpoints.Refresh = endpoints.Refresh
		}
		if endpoints.Validate != "" {
			m.endpoints.Validate = endpoints.Validate
		}
	}
}

// WithRefreshHeader sets the header carrying the refresh token on validate, empty keeps the default
func WithRefreshHeader(header string) Option {
	return func(m *Manager) {
		if header != "" {
			m.refreshHeader = header
		}
	}
}

// WithFreshness sets how long the authenticated state is cached
func WithFreshness(freshness time.Duration) Option {
	return func(m *Manager) {
		m.freshness = freshness
	}
}

// WithLogger sets logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics sets transport metrics
func WithMetrics(metrics *transport.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}
