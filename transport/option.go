package transport

import (
	"log/slog"
	"net/http"

	"github.com/viant/authsession/store"
)

type Option func(*RoundTripper)

// WithStore sets credential store
func WithStore(store store.Store) Option {
	return func(t *RoundTripper) {
		t.store = store
	}
}

// WithTransport sets the underlying transport used for dispatch and refresh
func WithTransport(transport http.RoundTripper) Option {
	return func(t *RoundTripper) {
		t.transport = transport
	}
}

// WithBaseURL sets the auth service base URL
func WithBaseURL(baseURL string) Option {
	return func(t *RoundTripper) {
		t.baseURL = baseURL
	}
}

// WithRefreshPath sets refresh endpoint path
func WithRefreshPath(path string) Option {
	return func(t *RoundTripper) {
		t.refreshPath = path
	}
}

// WithValidatePath sets the path of the validate endpoint, the only call that also carries the refresh token
func WithValidatePath(path string) Option {
	return func(t *RoundTripper) {
		t.validatePath = path
	}
}

// WithRefreshHeader sets the secondary header name used for the refresh token
func WithRefreshHeader(header string) Option {
	return func(t *RoundTripper) {
		t.refreshHeader = header
	}
}

// WithLogger sets logger
func WithLogger(logger *slog.Logger) Option {
	return func(t *RoundTripper) {
		t.logger = logger
	}
}

// WithMetrics sets metrics
func WithMetrics(metrics *Metrics) Option {
	return func(t *RoundTripper) {
		t.metrics = metrics
	}
}

// WithListener registers a session expiry listener
func WithListener(listener Listener) Option {
	return func(t *RoundTripper) {
		t.initial = append(t.initial, listener)
	}
}
