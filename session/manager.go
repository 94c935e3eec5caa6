package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/viant/authsession/internal/collection"
	"github.com/viant/authsession/schema"
	"github.com/viant/authsession/store"
	"github.com/viant/authsession/transport"
	"golang.org/x/oauth2"
)

// Manager is a single client session: it owns the credential store, the authenticated
// transport and the authentication state signal.
type Manager struct {
	baseURL       string
	endpoints     Endpoints
	refreshHeader string
	freshness     time.Duration
	store         store.Store
	base          http.RoundTripper
	logger        *slog.Logger
	metrics       *transport.Metrics

	roundTripper *transport.RoundTripper
	client       *http.Client
	plain        *http.Client
	signal       *Signal
	invalidators *collection.SyncMap[string, func()]
	register     mutation
	login        mutation
	logout       mutation
}

var _ oauth2.TokenSource = (*Manager)(nil)

type validator interface {
	Validate() error
}

// Register creates an account and starts a session with the issued tokens.
func (m *Manager) Register(ctx context.Context, request *schema.RegisterRequest) (*schema.AuthResponse, error) {
	m.register.begin()
	response, err := m.authenticate(ctx, "register", m.endpoints.Register, request)
	m.register.end(err)
	return response, err
}

// Login starts a session with the issued tokens.
func (m *Manager) Login(ctx context.Context, request *schema.LoginRequest) (*schema.AuthResponse, error) {
	m.login.begin()
	response, err := m.authenticate(ctx, "login", m.endpoints.Login, request)
	m.login.end(err)
	return response, err
}

// Logout clears local credentials without waiting for the server and marks the session unauthenticated.
func (m *Manager) Logout(ctx context.Context) error {
	m.logout.begin()
	err := m.roundTripper.Coordinator().Clear(ctx)
	if err != nil {
		m.signal.Invalidate()
		m.logout.end(err)
		return err
	}
	m.signal.Set(StateUnauthenticated)
	m.invalidators.Range(func(_ string, invalidate func()) bool {
		invalidate()
		return true
	})
	m.logger.Info("logged out")
	m.logout.end(nil)
	return nil
}

func (m *Manager) authenticate(ctx context.Context, op, path string, request validator) (*schema.AuthResponse, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, schema.NewValidationError(op, err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, transport.Endpoint(m.baseURL, path), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create %v request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	resp, err := m.plain.Do(req)
	if err != nil {
		return nil, schema.NewNetworkError(op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, schema.NewNetworkError(op, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err = schema.NewStatusError(op, resp.StatusCode, body)
		m.logger.Warn(op+" rejected", "status", resp.StatusCode, "error", err)
		return nil, err
	}
	response := &schema.AuthResponse{}
	if err = json.Unmarshal(body, response); err != nil {
		return nil, &schema.Error{Kind: schema.ErrValidation, Op: op, Message: "invalid response format", Err: err}
	}
	if err = response.Validate(); err != nil {
		return nil, err
	}
	if err = m.roundTripper.Coordinator().Replace(context.WithoutCancel(ctx), &response.Tokens); err != nil {
		m.logger.Error("failed to store authentication tokens", "op", op, "error", err)
		return nil, err
	}
	m.signal.Set(StateAuthenticated)
	m.logger.Info(op+" succeeded", "user_id", response.User.ID, "username", response.User.Username)
	return response, nil
}

// IsAuthenticated returns the cached state, deriving it when stale.
func (m *Manager) IsAuthenticated(ctx context.Context) (State, error) {
	return m.signal.Get(ctx)
}

// Loading reports whether the initial authentication check is in progress
func (m *Manager) Loading() bool {
	return m.signal.Loading()
}

// Foreground re-derives the state regardless of freshness, call it when the application becomes active.
func (m *Manager) Foreground(ctx context.Context) (State, error) {
	return m.signal.Refetch(ctx)
}

// Invalidate forces the next IsAuthenticated to re-derive the state
func (m *Manager) Invalidate() {
	m.signal.Invalidate()
}

// OnUnauthenticated registers a listener for transitions into StateUnauthenticated, e.g. to navigate to login.
func (m *Manager) OnUnauthenticated(listener func(Event)) func() {
	return m.signal.Subscribe(listener)
}

// AddInvalidator registers application cache invalidation run on logout
func (m *Manager) AddInvalidator(invalidate func()) func() {
	id := uuid.NewString()
	m.invalidators.Put(id, invalidate)
	return func() { m.invalidators.Delete(id) }
}

func (m *Manager) RegisterStatus() Mutation { return m.register.snapshot() }

func (m *Manager) LoginStatus() Mutation { return m.login.snapshot() }

func (m *Manager) LogoutStatus() Mutation { return m.logout.snapshot() }

// Client returns http client authenticating every request with the session credentials
func (m *Manager) Client() *http.Client {
	return m.client
}

// RoundTripper returns the session transport
func (m *Manager) RoundTripper() *transport.RoundTripper {
	return m.roundTripper
}

// Store returns the credential store
func (m *Manager) Store() store.Store {
	return m.store
}

// Token implements oauth2.TokenSource with the stored credentials
func (m *Manager) Token() (*oauth2.Token, error) {
	pair, err := store.Pair(context.Background(), m.store)
	if err != nil {
		return nil, err
	}
	if pair.AccessToken == "" {
		return nil, schema.NewAuthorizationError("token", errors.New("not authenticated"))
	}
	return pair.Token(), nil
}

func (m *Manager) validate(ctx context.Context) (bool, error) {
	_, ok, err := m.store.Get(ctx, store.AccessTokenKey)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, transport.Endpoint(m.baseURL, m.endpoints.Validate), nil)
	if err != nil {
		return false, fmt.Errorf("failed to create validate request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		if errors.Is(err, schema.ErrAuthorization) {
			return false, nil
		}
		return false, err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return false, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, schema.NewNetworkError("validate", err)
	}
	return false, schema.NewStatusError("validate", resp.StatusCode, body)
}

// New creates a session manager
func New(options ...Option) (*Manager, error) {
	ret := &Manager{
		endpoints:     DefaultEndpoints(),
		refreshHeader: transport.DefaultRefreshHeader,
		store:         store.NewMemoryStore(),
		base:          http.DefaultTransport,
		logger:        slog.Default(),
		invalidators:  collection.NewSyncMap[string, func()](),
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.baseURL == "" {
		return nil, fmt.Errorf("base URL was empty")
	}
	ret.signal = NewSignal(ret.validate, ret.freshness)
	var err error
	ret.roundTripper, err = transport.New(
		transport.WithStore(ret.store),
		transport.WithTransport(ret.base),
		transport.WithBaseURL(ret.baseURL),
		transport.WithRefreshPath(ret.endpoints.Refresh),
		transport.WithValidatePath(ret.endpoints.Validate),
		transport.WithRefreshHeader(ret.refreshHeader),
		transport.WithLogger(ret.logger),
		transport.WithMetrics(ret.metrics),
		transport.WithListener(func(cause error) {
			ret.logger.Info("session expired", "cause", cause)
			ret.signal.Set(StateUnauthenticated)
		}),
	)
	if err != nil {
		return nil, err
	}
	ret.client = &http.Client{Transport: ret.roundTripper}
	ret.plain = &http.Client{Transport: ret.base}
	return ret, nil
}
