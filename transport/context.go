package transport

import "context"

type (
	contextKey string
)

const (
	contextRetriedKey contextKey = "authRetried"
)

// IsRetried reports whether the request carrying ctx is already a replay after refresh.
func IsRetried(ctx context.Context) bool {
	retried, _ := ctx.Value(contextRetriedKey).(bool)
	return retried
}

func markRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextRetriedKey, true)
}
