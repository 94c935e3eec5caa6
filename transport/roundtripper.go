package transport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/viant/afs/url"
	"github.com/viant/authsession/schema"
	"github.com/viant/authsession/store"
	"golang.org/x/oauth2"
)

const (
	requestIDHeader = "X-Request-ID"

	DefaultRefreshPath   = "/auth/refresh"
	DefaultValidatePath  = "/auth/validate"
	DefaultRefreshHeader = "X-Refresh-Token"
)

type RoundTripper struct {
	store         store.Store
	transport     http.RoundTripper
	coordinator   *Coordinator
	baseURL       string
	refreshPath   string
	validatePath  string
	refreshHeader string
	logger        *slog.Logger
	metrics       *Metrics
	initial       []Listener
}

func New(options ...Option) (*RoundTripper, error) {
	ret := &RoundTripper{
		transport:     http.DefaultTransport,
		store:         store.NewMemoryStore(),
		refreshPath:   DefaultRefreshPath,
		validatePath:  DefaultValidatePath,
		refreshHeader: DefaultRefreshHeader,
		logger:        slog.Default(),
	}

	for _, opt := range options {
		opt(ret)
	}
	refreshURL := ""
	if ret.baseURL != "" {
		refreshURL = Endpoint(ret.baseURL, ret.refreshPath)
	}
	var err error
	if ret.coordinator, err = newCoordinator(ret.store, ret.transport, refreshURL, ret.logger, ret.metrics); err != nil {
		return nil, err
	}
	for _, listener := range ret.initial {
		ret.coordinator.OnExpired(listener)
	}
	return ret, nil
}

func (r *RoundTripper) Store() store.Store {
	return r.store
}

func (r *RoundTripper) Coordinator() *Coordinator {
	return r.coordinator
}

// OnExpired registers a listener called when the session credentials are purged
func (r *RoundTripper) OnExpired(listener Listener) func() {
	return r.coordinator.OnExpired(listener)
}

func (r *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	body, err := readBody(req)
	if err != nil {
		return nil, schema.NewNetworkError(operation(req), err)
	}
	// 1) Dispatch with whatever credentials are stored, possibly none.
	probe := clone(req, body)
	access, err := r.authenticate(ctx, probe)
	if err != nil {
		return nil, err
	}
	resp, err := r.transport.RoundTrip(probe)
	if err != nil {
		return nil, schema.NewNetworkError(operation(req), err)
	}

	// 2) Anything but a first 401 goes back as is.
	if resp.StatusCode != http.StatusUnauthorized || IsRetried(ctx) {
		return resp, nil
	}
	discard(resp)

	// 3) Refresh (or join the refresh in flight).
	pair, err := r.coordinator.Refresh(ctx, access)
	if err != nil {
		return nil, err
	}

	// 4) Replay exactly once with the new credentials.
	retry := clone(req, body).WithContext(markRetried(ctx))
	r.attach(retry, pair.AccessToken, pair.RefreshToken)
	r.ensureRequestID(retry, probe)
	resp, err = r.transport.RoundTrip(retry)
	if err != nil {
		return nil, schema.NewNetworkError(operation(req), err)
	}
	r.metrics.replayed(resp.StatusCode)
	if resp.StatusCode == http.StatusUnauthorized {
		if err := r.coordinator.Expire(context.WithoutCancel(ctx), pair.AccessToken, ErrReplayRejected); err != nil {
			r.logger.Debug("replay rejected", "url", req.URL.String(), "error", err)
		}
	}
	return resp, nil
}

// authenticate attaches stored credentials and returns the access token used, empty if none is stored.
func (r *RoundTripper) authenticate(ctx context.Context, req *http.Request) (string, error) {
	r.ensureRequestID(req, nil)
	access, ok, err := r.store.Get(ctx, store.AccessTokenKey)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	refresh := ""
	if r.isValidate(req) {
		if refresh, _, err = r.store.Get(ctx, store.RefreshTokenKey); err != nil {
			return "", err
		}
	}
	r.attach(req, access, refresh)
	return access, nil
}

func (r *RoundTripper) attach(req *http.Request, access, refresh string) {
	(&oauth2.Token{AccessToken: access, TokenType: "Bearer"}).SetAuthHeader(req)
	if refresh != "" && r.isValidate(req) {
		req.Header.Set(r.refreshHeader, refresh)
	}
}

func (r *RoundTripper) isValidate(req *http.Request) bool {
	return req.Method == http.MethodGet && strings.HasSuffix(req.URL.Path, r.validatePath)
}

func (r *RoundTripper) ensureRequestID(req, from *http.Request) {
	if req.Header.Get(requestIDHeader) != "" {
		return
	}
	if from != nil {
		req.Header.Set(requestIDHeader, from.Header.Get(requestIDHeader))
		return
	}
	req.Header.Set(requestIDHeader, uuid.NewString())
}

// Endpoint joins the service base URL with an endpoint path
func Endpoint(baseURL, path string) string {
	return url.Join(strings.TrimRight(baseURL, "/"), strings.TrimLeft(path, "/"))
}

func operation(req *http.Request) string {
	return req.Method + " " + req.URL.Path
}
