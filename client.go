package authsession

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/viant/authsession/config"
	"github.com/viant/authsession/session"
	"github.com/viant/authsession/store"
)

// NewManager creates a session manager from cfg. Extra options are applied after the configured ones.
// The returned function releases store connections.
func NewManager(ctx context.Context, cfg *config.Config, logger *slog.Logger, options ...session.Option) (*session.Manager, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	aStore, closer, err := NewStore(ctx, &cfg.Store, logger)
	if err != nil {
		return nil, nil, err
	}
	configured := []session.Option{
		session.WithBaseURL(cfg.Service.BaseURL),
		session.WithEndpoints(session.Endpoints{
			Register: cfg.Service.RegisterPath,
			Login:    cfg.Service.LoginPath,
			Refresh:  cfg.Service.RefreshPath,
			Validate: cfg.Service.ValidatePath,
		}),
		session.WithRefreshHeader(cfg.Service.RefreshHeader),
		session.WithFreshness(cfg.Session.Freshness),
		session.WithStore(aStore),
		session.WithLogger(logger),
	}
	manager, err := session.New(append(configured, options...)...)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return manager, closer, nil
}

// NewStore creates the configured credential store
func NewStore(ctx context.Context, cfg *config.StoreConfig, logger *slog.Logger) (store.Store, func(), error) {
	switch cfg.Kind {
	case config.StoreMemory:
		return store.NewMemoryStore(), func() {}, nil
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ret, err := store.NewRedisStore(ctx, client, cfg.Prefix, logger)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return ret, func() { _ = client.Close() }, nil
	case config.StoreFile:
		URL, err := expandHome(cfg.URL)
		if err != nil {
			return nil, nil, err
		}
		ret, err := store.NewFileStore(ctx, URL, logger)
		if err != nil {
			return nil, nil, err
		}
		return ret, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unsupported store kind: %q", cfg.Kind)
}

// NewLogger creates a text or json slog logger writing to w
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	handlerOptions := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOptions))
	}
	return slog.New(slog.NewTextHandler(w, handlerOptions))
}

func expandHome(location string) (string, error) {
	if !strings.HasPrefix(location, "~/") {
		return location, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, location[2:]), nil
}
