package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/authsession/mock"
	"github.com/viant/authsession/schema"
	"github.com/viant/authsession/store"
	"github.com/viant/authsession/transport"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// scriptedService serves fixed tokens: A1/R1 on login, A2/R2 on refresh, validate accepts A1 and A2.
type scriptedService struct {
	validateCalls atomic.Int32
	refreshCalls  atomic.Int32
	rejectRefresh bool
}

func (s *scriptedService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"user":{"id":"1","username":"alice"},"tokens":{"access_token":"A1","refresh_token":"R1"},"expires_in":900}`)
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		s.refreshCalls.Add(1)
		if s.rejectRefresh || r.Header.Get("Authorization") != "Bearer R1" {
			http.Error(w, `{"error":"invalid refresh token"}`, http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(&schema.TokenPair{AccessToken: "A2", RefreshToken: "R2"})
	})
	mux.HandleFunc("/auth/validate", func(w http.ResponseWriter, r *http.Request) {
		s.validateCalls.Add(1)
		switch r.Header.Get("Authorization") {
		case "Bearer A1", "Bearer A2":
			_, _ = fmt.Fprint(w, `{"ok":true}`)
		default:
			http.Error(w, "token expired", http.StatusUnauthorized)
		}
	})
	return mux
}

func newScripted(t *testing.T, service *scriptedService, aStore store.Store) (*Manager, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(service.handler())
	t.Cleanup(server.Close)
	manager, err := New(WithBaseURL(server.URL), WithStore(aStore))
	require.NoError(t, err)
	return manager, server
}

func seeded(t *testing.T, access, refresh string) store.Store {
	t.Helper()
	ret := store.NewMemoryStore()
	require.NoError(t, ret.SetPair(context.Background(), &schema.TokenPair{AccessToken: access, RefreshToken: refresh}))
	return ret
}

func TestManager_LoginSkipsValidation(t *testing.T) {
	service := &scriptedService{}
	manager, _ := newScripted(t, service, store.NewMemoryStore())
	ctx := context.Background()

	response, err := manager.Login(ctx, &schema.LoginRequest{Username: "alice", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "alice", response.User.Username)
	assert.EqualValues(t, 900, response.ExpiresIn)

	pair, err := store.Pair(ctx, manager.Store())
	require.NoError(t, err)
	assert.Equal(t, &schema.TokenPair{AccessToken: "A1", RefreshToken: "R1"}, pair)

	state, err := manager.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, state)
	assert.EqualValues(t, 0, service.validateCalls.Load())

	status := manager.LoginStatus()
	assert.False(t, status.Pending)
	assert.NoError(t, status.Err)
	assert.False(t, status.SucceededAt.IsZero())
}

func TestManager_ValidateRefreshesExpiredToken(t *testing.T) {
	service := &scriptedService{}
	manager, _ := newScripted(t, service, seeded(t, "A_expired", "R1"))
	ctx := context.Background()

	state, err := manager.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, state)
	assert.EqualValues(t, 1, service.refreshCalls.Load())
	assert.EqualValues(t, 2, service.validateCalls.Load())

	pair, err := store.Pair(ctx, manager.Store())
	require.NoError(t, err)
	assert.Equal(t, &schema.TokenPair{AccessToken: "A2", RefreshToken: "R2"}, pair)
}

func TestManager_RefreshFailureEndsSession(t *testing.T) {
	service := &scriptedService{rejectRefresh: true}
	manager, _ := newScripted(t, service, seeded(t, "A_expired", "R1"))
	ctx := context.Background()
	var events []Event
	manager.OnUnauthenticated(func(event Event) { events = append(events, event) })

	state, err := manager.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateUnauthenticated, state)
	require.Len(t, events, 1)
	assert.Equal(t, StateUnauthenticated, events[0].State)

	pair, err := store.Pair(ctx, manager.Store())
	require.NoError(t, err)
	assert.Empty(t, pair.AccessToken)
	assert.Empty(t, pair.RefreshToken)
}

func TestManager_NoTokenSkipsNetwork(t *testing.T) {
	service := &scriptedService{}
	manager, _ := newScripted(t, service, store.NewMemoryStore())

	state, err := manager.IsAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateUnauthenticated, state)
	assert.EqualValues(t, 0, service.validateCalls.Load())
	assert.False(t, manager.Loading())
}

func TestManager_NetworkErrorIsNotUnauthenticated(t *testing.T) {
	failure := errors.New("connection refused")
	manager, err := New(
		WithBaseURL("http://auth.invalid"),
		WithStore(seeded(t, "A1", "R1")),
		WithTransport(roundTripperFunc(func(*http.Request) (*http.Response, error) { return nil, failure })),
	)
	require.NoError(t, err)

	state, err := manager.IsAuthenticated(context.Background())
	assert.ErrorIs(t, err, schema.ErrNetwork)
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, StateUnknown, state)

	pair, err := store.Pair(context.Background(), manager.Store())
	require.NoError(t, err)
	assert.Equal(t, "A1", pair.AccessToken)
}

func TestManager_Logout(t *testing.T) {
	service := &scriptedService{}
	manager, _ := newScripted(t, service, store.NewMemoryStore())
	ctx := context.Background()
	_, err := manager.Login(ctx, &schema.LoginRequest{Username: "alice", Password: "secret"})
	require.NoError(t, err)

	invalidated := 0
	manager.AddInvalidator(func() { invalidated++ })
	var events []Event
	manager.OnUnauthenticated(func(event Event) { events = append(events, event) })

	require.NoError(t, manager.Logout(ctx))
	assert.Equal(t, 1, invalidated)
	require.Len(t, events, 1)
	assert.Equal(t, StateAuthenticated, events[0].Previous)

	state, err := manager.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateUnauthenticated, state)
	_, ok, err := manager.Store().Get(ctx, store.AccessTokenKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, manager.LogoutStatus().Err)
}

type failingStore struct {
	store.Store
}

func (f *failingStore) SetPair(ctx context.Context, pair *schema.TokenPair) error {
	return schema.NewStorageError("set", errors.New("disk full"))
}

func (f *failingStore) ClearPair(ctx context.Context) error {
	return schema.NewStorageError("clear", errors.New("disk full"))
}

func TestManager_StorageFailure(t *testing.T) {
	service := &scriptedService{}
	manager, _ := newScripted(t, service, &failingStore{Store: store.NewMemoryStore()})
	ctx := context.Background()

	_, err := manager.Login(ctx, &schema.LoginRequest{Username: "alice", Password: "secret"})
	assert.ErrorIs(t, err, schema.ErrStorage)
	assert.ErrorIs(t, manager.LoginStatus().Err, schema.ErrStorage)
	assert.NotEqual(t, StateAuthenticated, manager.signal.Peek())

	assert.ErrorIs(t, manager.Logout(ctx), schema.ErrStorage)
	assert.ErrorIs(t, manager.LogoutStatus().Err, schema.ErrStorage)
}

func TestManager_LoginErrors(t *testing.T) {
	server := mock.NewHTTPTestAuthServer()
	defer server.Close()
	_, err := server.AddUser("alice", "secret", "alice@example.com")
	require.NoError(t, err)
	manager, err := New(WithBaseURL(server.URL))
	require.NoError(t, err)
	ctx := context.Background()

	var testCases = []struct {
		description string
		request     *schema.LoginRequest
		expect      error
		loginCalls  int
	}{
		{description: "missing password", request: &schema.LoginRequest{Username: "alice"}, expect: schema.ErrValidation, loginCalls: 0},
		{description: "wrong password", request: &schema.LoginRequest{Username: "alice", Password: "wrong"}, expect: schema.ErrAuthorization, loginCalls: 1},
		{description: "unknown user", request: &schema.LoginRequest{Username: "bob", Password: "secret"}, expect: schema.ErrAuthorization, loginCalls: 2},
	}
	for _, testCase := range testCases {
		_, err := manager.Login(ctx, testCase.request)
		assert.ErrorIs(t, err, testCase.expect, testCase.description)
		assert.Equal(t, testCase.loginCalls, server.Calls(mock.LoginPath), testCase.description)
		assert.ErrorIs(t, manager.LoginStatus().Err, testCase.expect, testCase.description)
	}
	assert.Equal(t, 0, server.Calls(mock.RefreshPath))
	assert.Equal(t, "invalid credentials", schema.Message(manager.LoginStatus().Err))
}

func TestManager_Register(t *testing.T) {
	server := mock.NewHTTPTestAuthServer()
	defer server.Close()
	manager, err := New(WithBaseURL(server.URL))
	require.NoError(t, err)
	ctx := context.Background()

	response, err := manager.Register(ctx, &schema.RegisterRequest{Username: "alice", Password: "secret", Email: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "alice", response.User.Username)
	assert.Equal(t, StateAuthenticated, manager.signal.Peek())

	token, err := manager.Token()
	require.NoError(t, err)
	assert.Equal(t, response.Tokens.AccessToken, token.AccessToken)
	assert.True(t, token.Valid())

	_, err = manager.Register(ctx, &schema.RegisterRequest{Username: "alice", Password: "secret", Email: "alice@example.com"})
	assert.ErrorIs(t, err, schema.ErrValidation)
	assert.ErrorIs(t, manager.RegisterStatus().Err, schema.ErrValidation)

	_, err = manager.Register(ctx, &schema.RegisterRequest{Username: "bob", Password: "secret", Email: "bob"})
	assert.ErrorIs(t, err, schema.ErrValidation)
	assert.Equal(t, 2, server.Calls(mock.RegisterPath))
}

func TestManager_ExpiredSessionRecovers(t *testing.T) {
	server := mock.NewHTTPTestAuthServer(mock.WithSingleUseRefresh())
	defer server.Close()
	_, err := server.AddUser("alice", "secret", "alice@example.com")
	require.NoError(t, err)
	manager, err := New(WithBaseURL(server.URL), WithFreshness(time.Millisecond))
	require.NoError(t, err)
	ctx := context.Background()
	_, err = manager.Login(ctx, &schema.LoginRequest{Username: "alice", Password: "secret"})
	require.NoError(t, err)

	server.ExpireAccessTokens()
	var wg sync.WaitGroup
	codes := make([]int, 10)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := manager.Client().Get(server.URL + "/api/resource")
			if err != nil {
				return
			}
			codes[i] = resp.StatusCode
			resp.Body.Close()
		}(i)
	}
	wg.Wait()
	for i, code := range codes {
		assert.Equal(t, http.StatusOK, code, "request %d", i)
	}
	assert.Equal(t, 1, server.Calls(mock.RefreshPath))

	server.RevokeRefreshTokens()
	server.ExpireAccessTokens()
	time.Sleep(2 * time.Millisecond)
	state, err := manager.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateUnauthenticated, state)

	_, err = manager.Token()
	assert.ErrorIs(t, err, schema.ErrAuthorization)
}

func TestManager_Foreground(t *testing.T) {
	service := &scriptedService{}
	manager, _ := newScripted(t, service, seeded(t, "A1", "R1"))
	ctx := context.Background()

	_, err := manager.IsAuthenticated(ctx)
	require.NoError(t, err)
	_, err = manager.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, service.validateCalls.Load())

	state, err := manager.Foreground(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, state)
	assert.EqualValues(t, 2, service.validateCalls.Load())

	manager.Invalidate()
	_, err = manager.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, service.validateCalls.Load())
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New()
	assert.Error(t, err)
}

// blockingService holds every refresh until release is closed; resources accept A2 (refreshed) and A3 (logged in).
type blockingService struct {
	release   chan struct{}
	refreshes atomic.Int32
}

func (s *blockingService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		s.refreshes.Add(1)
		<-s.release
		_ = json.NewEncoder(w).Encode(&schema.TokenPair{AccessToken: "A2", RefreshToken: "R2"})
	})
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"user":{"id":"1","username":"alice"},"tokens":{"access_token":"A3","refresh_token":"R3"},"expires_in":900}`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer A2", "Bearer A3":
			_, _ = fmt.Fprint(w, `{"ok":true}`)
		default:
			http.Error(w, "token expired", http.StatusUnauthorized)
		}
	})
	return mux
}

type fetchResult struct {
	code int
	err  error
}

// fetchDuringRefresh issues a request that triggers a refresh, runs mutate while the refresh is blocked, then releases it.
func fetchDuringRefresh(t *testing.T, manager *Manager, service *blockingService, URL string, mutate func()) fetchResult {
	t.Helper()
	done := make(chan fetchResult, 1)
	go func() {
		resp, err := manager.Client().Get(URL + "/data")
		if err != nil {
			done <- fetchResult{err: err}
			return
		}
		resp.Body.Close()
		done <- fetchResult{code: resp.StatusCode}
	}()
	require.Eventually(t, func() bool {
		return service.refreshes.Load() == 1
	}, 5*time.Second, 5*time.Millisecond)
	mutate()
	close(service.release)
	return <-done
}

func TestManager_LogoutDuringRefresh(t *testing.T) {
	service := &blockingService{release: make(chan struct{})}
	server := httptest.NewServer(service.handler())
	defer server.Close()
	manager, err := New(WithBaseURL(server.URL), WithStore(seeded(t, "A1", "R1")))
	require.NoError(t, err)
	ctx := context.Background()

	result := fetchDuringRefresh(t, manager, service, server.URL, func() {
		require.NoError(t, manager.Logout(ctx))
	})
	assert.ErrorIs(t, result.err, schema.ErrAuthorization)
	assert.ErrorIs(t, result.err, transport.ErrSessionCleared)

	pair, err := store.Pair(ctx, manager.Store())
	require.NoError(t, err)
	assert.Empty(t, pair.AccessToken)
	assert.Empty(t, pair.RefreshToken)

	manager.Invalidate()
	state, err := manager.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateUnauthenticated, state)
}

func TestManager_LoginDuringRefresh(t *testing.T) {
	service := &blockingService{release: make(chan struct{})}
	server := httptest.NewServer(service.handler())
	defer server.Close()
	manager, err := New(WithBaseURL(server.URL), WithStore(seeded(t, "A1", "R1")))
	require.NoError(t, err)
	ctx := context.Background()

	result := fetchDuringRefresh(t, manager, service, server.URL, func() {
		_, err := manager.Login(ctx, &schema.LoginRequest{Username: "alice", Password: "secret"})
		require.NoError(t, err)
	})
	require.NoError(t, result.err)
	assert.Equal(t, http.StatusOK, result.code)

	pair, err := store.Pair(ctx, manager.Store())
	require.NoError(t, err)
	assert.Equal(t, &schema.TokenPair{AccessToken: "A3", RefreshToken: "R3"}, pair)
	assert.Equal(t, StateAuthenticated, manager.signal.Peek())
}

func TestManager_ValidateBodyReadFailure(t *testing.T) {
	failure := errors.New("connection reset")
	manager, err := New(
		WithBaseURL("http://auth.invalid"),
		WithStore(seeded(t, "A1", "R1")),
		WithTransport(roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Header:     http.Header{},
				Body:       io.NopCloser(iotest.ErrReader(failure)),
				Request:    r,
			}, nil
		})),
	)
	require.NoError(t, err)

	state, err := manager.IsAuthenticated(context.Background())
	assert.ErrorIs(t, err, schema.ErrNetwork)
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, StateUnknown, state)
}
