package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoAPIKeys     = errors.New("no API keys configured")
	ErrAllKeysFailed = errors.New("all API keys failed")
)

// KeyPool returns the non-empty keys in first-seen order with duplicates removed.
func KeyPool(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	pool := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		pool = append(pool, k)
	}
	return pool
}

// RotateKeys runs call with each key of the pool in order until one succeeds.
// onRotate, when set, is invoked each time a key fails and another remains.
// The returned error wraps ErrAllKeysFailed and the last call error.
func RotateKeys[T any](ctx context.Context, keys []string, onRotate func(attempt int, err error), call func(ctx context.Context, key string) (T, error)) (T, error) {
	var zero T
	pool := KeyPool(keys)
	if len(pool) == 0 {
		return zero, ErrNoAPIKeys
	}

	var lastErr error
	for i, key := range pool {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		out, err := call(ctx, key)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if onRotate != nil && i < len(pool)-1 {
			onRotate(i+1, err)
		}
	}
	return zero, fmt.Errorf("%w: %w", ErrAllKeysFailed, lastErr)
}
