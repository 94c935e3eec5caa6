package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/viant/authsession/internal/collection"
	"github.com/viant/authsession/internal/redact"
	"github.com/viant/authsession/schema"
	"github.com/viant/authsession/store"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const refreshKey = "refresh"

var (
	// ErrNoRefreshToken is returned when a refresh is needed but no refresh token is stored
	ErrNoRefreshToken = errors.New("no refresh token found")
	// ErrReplayRejected is reported to listeners when a request replayed with fresh tokens is rejected again
	ErrReplayRejected = errors.New("replayed request rejected")
	// ErrSessionCleared is returned to requests whose refresh was outrun by a logout
	ErrSessionCleared = errors.New("session cleared")
)

// Listener is notified with the cause whenever the coordinator purges the session credentials.
type Listener func(cause error)

// Coordinator performs refreshes: at most one refresh is in flight and concurrent callers join it.
// Every credential write goes through the coordinator mutex; epoch counts session replacements
// so that a refresh started before Replace or Clear never writes its result.
type Coordinator struct {
	store      store.Store
	transport  http.RoundTripper
	refreshURL string
	logger     *slog.Logger
	metrics    *Metrics
	group      singleflight.Group
	mux        sync.Mutex
	epoch      uint64
	listeners  *collection.SyncMap[string, Listener]
}

// Refresh returns the post-refresh token pair. stale is the access token the failed request was sent with;
// if the store already holds a different pair, it is returned without a network call.
// The refresh itself is not bound to ctx cancellation, an abandoning caller gets ctx.Err().
func (c *Coordinator) Refresh(ctx context.Context, stale string) (*schema.TokenPair, error) {
	ch := c.group.DoChan(refreshKey, func() (interface{}, error) {
		return c.refresh(context.WithoutCancel(ctx), stale)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-ch:
		if result.Shared {
			c.metrics.shared()
		}
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.(*schema.TokenPair), nil
	}
}

func (c *Coordinator) refresh(ctx context.Context, stale string) (*schema.TokenPair, error) {
	c.mux.Lock()
	current, err := store.Pair(ctx, c.store)
	if err != nil {
		c.mux.Unlock()
		return nil, err
	}
	if current.AccessToken != "" && current.RefreshToken != "" && current.AccessToken != stale {
		c.mux.Unlock()
		c.metrics.refreshed(outcomeSkipped)
		c.logger.Debug("credentials already refreshed", "access_token", redact.Token(current.AccessToken))
		return current, nil
	}
	if current.RefreshToken == "" {
		defer c.mux.Unlock()
		c.metrics.refreshed(outcomeFailure)
		return nil, c.expire(ctx, ErrNoRefreshToken)
	}
	epoch := c.epoch
	c.mux.Unlock()

	pair, err := c.fetch(ctx, current.RefreshToken)

	c.mux.Lock()
	defer c.mux.Unlock()
	if c.epoch != epoch {
		c.metrics.refreshed(outcomeDiscarded)
		return c.superseded(ctx)
	}
	if err == nil {
		err = c.store.SetPair(ctx, pair)
	}
	if err != nil {
		c.metrics.refreshed(outcomeFailure)
		return nil, c.expire(ctx, err)
	}
	c.metrics.refreshed(outcomeSuccess)
	c.logger.Debug("credentials refreshed", "access_token", redact.Token(pair.AccessToken))
	return pair, nil
}

// superseded resolves a refresh outrun by Replace or Clear: the stored pair wins, an empty store means logged out.
func (c *Coordinator) superseded(ctx context.Context) (*schema.TokenPair, error) {
	current, err := store.Pair(ctx, c.store)
	if err != nil {
		return nil, err
	}
	if current.AccessToken == "" || current.RefreshToken == "" {
		c.logger.Debug("refresh discarded, session cleared")
		return nil, schema.NewAuthorizationError("refresh", ErrSessionCleared)
	}
	c.logger.Debug("refresh discarded, credentials replaced", "access_token", redact.Token(current.AccessToken))
	return current, nil
}

// Replace stores a new session pair; a refresh in flight for the previous session is discarded.
func (c *Coordinator) Replace(ctx context.Context, pair *schema.TokenPair) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if err := c.store.SetPair(ctx, pair); err != nil {
		return err
	}
	c.epoch++
	return nil
}

// Clear removes the session pair without notifying listeners; a refresh in flight is discarded.
func (c *Coordinator) Clear(ctx context.Context) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.epoch++
	return c.store.ClearPair(ctx)
}

func (c *Coordinator) fetch(ctx context.Context, refreshToken string) (*schema.TokenPair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.refreshURL, nil)
	if err != nil {
		return nil, err
	}
	(&oauth2.Token{AccessToken: refreshToken, TokenType: "Bearer"}).SetAuthHeader(req)
	req.Header.Set(requestIDHeader, uuid.NewString())
	resp, err := c.transport.RoundTrip(req)
	if err != nil {
		return nil, schema.NewNetworkError("refresh", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, schema.NewNetworkError("refresh", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, schema.NewStatusError("refresh", resp.StatusCode, body)
	}
	pair := &schema.TokenPair{}
	if err = json.Unmarshal(body, pair); err != nil {
		return nil, &schema.Error{Kind: schema.ErrValidation, Op: "refresh", Message: "invalid token response", Err: err}
	}
	if err = pair.Validate(); err != nil {
		return nil, err
	}
	return pair, nil
}

// Expire clears the credentials when the store still holds the access token the rejected request used.
func (c *Coordinator) Expire(ctx context.Context, used string, cause error) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	current, _, err := c.store.Get(ctx, store.AccessTokenKey)
	if err != nil {
		return err
	}
	if current != used {
		return nil
	}
	return c.expire(ctx, cause)
}

func (c *Coordinator) expire(ctx context.Context, cause error) error {
	c.logger.Warn("session expired, clearing credentials", "cause", cause)
	if err := c.store.ClearPair(ctx); err != nil {
		cause = errors.Join(cause, err)
	}
	c.listeners.Range(func(_ string, listener Listener) bool {
		listener(cause)
		return true
	})
	return schema.NewAuthorizationError("refresh", cause)
}

// OnExpired registers listener, the returned function unregisters it
func (c *Coordinator) OnExpired(listener Listener) func() {
	id := uuid.NewString()
	c.listeners.Put(id, listener)
	return func() { c.listeners.Delete(id) }
}

func newCoordinator(aStore store.Store, transport http.RoundTripper, refreshURL string, logger *slog.Logger, metrics *Metrics) (*Coordinator, error) {
	if refreshURL == "" {
		return nil, fmt.Errorf("refresh URL was empty")
	}
	return &Coordinator{
		store:      aStore,
		transport:  transport,
		refreshURL: refreshURL,
		logger:     logger,
		metrics:    metrics,
		listeners:  collection.NewSyncMap[string, Listener](),
	}, nil
}
