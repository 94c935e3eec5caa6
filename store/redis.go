package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/viant/authsession/schema"
)

// RedisStore keeps the token pair under two prefixed keys. SetPair runs MSET in a
// MULTI/EXEC transaction and ClearPair issues one multi-key DEL.
type RedisStore struct {
	mu     sync.Mutex
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a redis backed store, a lone key left by an interrupted writer is removed.
func NewRedisStore(ctx context.Context, client redis.UniversalClient, prefix string, logger *slog.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ret := &RedisStore{client: client, prefix: prefix}
	count, err := client.Exists(ctx, ret.keys()...).Result()
	if err != nil {
		return nil, schema.NewStorageError("repair", err)
	}
	if count == 1 {
		logger.Warn("clearing half written credentials", "prefix", prefix)
		if err = ret.ClearPair(ctx); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func (r *RedisStore) key(key string) string {
	return r.prefix + key
}

func (r *RedisStore) keys() []string {
	return []string{r.key(AccessTokenKey), r.key(RefreshTokenKey)}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, schema.NewStorageError("get "+key, err)
	}
	return value, true, nil
}

func (r *RedisStore) SetPair(ctx context.Context, pair *schema.TokenPair) error {
	if err := pair.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.MSet(ctx, r.key(AccessTokenKey), pair.AccessToken, r.key(RefreshTokenKey), pair.RefreshToken)
		return nil
	})
	if err != nil {
		return schema.NewStorageError("set pair", err)
	}
	return nil
}

func (r *RedisStore) ClearPair(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.client.Del(ctx, r.keys()...).Err(); err != nil {
		return schema.NewStorageError("clear pair", err)
	}
	return nil
}
