package ratelimit

import "context"

// Limiter counts failures per key inside a fixed window.
type Limiter interface {
	// Exceeded reports whether key already reached the limit.
	Exceeded(ctx context.Context, key string) (bool, error)
	// Hit records one failure and reports whether the limit is now reached.
	Hit(ctx context.Context, key string) (bool, error)
}

func Key(provider, client string) string {
	return "webhook_sig_fail:" + provider + ":" + client
}
