package domain

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// ReplayCache stores rendered responses keyed by a client correlation ID
type ReplayCache interface {
	GetResponse(ctx context.Context, correlationID string) ([]byte, error)
	SetResponse(ctx context.Context, correlationID string, body []byte, ttl time.Duration) error
}
