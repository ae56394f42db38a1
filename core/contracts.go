package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

// TokenStore is the durable single-slot credential store. Every read
// reflects the latest committed state; there is no caching layer.
type TokenStore interface {
	// Put replaces the entire stored state atomically. After a successful
	// Put exactly one record exists and it carries the given triple.
	Put(ctx context.Context, in SaveTokenInput) (TokenRecord, error)

	// Get returns the most recently updated record, or ErrTokenNotFound
	// when nothing is stored.
	Get(ctx context.Context) (TokenRecord, error)

	// Update mutates the existing record in place. When no record exists it
	// fails with ErrTokenNotFound.
	Update(ctx context.Context, in SaveTokenInput) (TokenRecord, error)
}

// TokenExchanger shapes and sends the two provider token-endpoint requests.
// It performs no retries; callers decide retry policy.
type TokenExchanger interface {
	AuthorizationURL() string
	ExchangeAuthorizationCode(ctx context.Context, code string) (TokenResult, error)
	ExchangeRefreshToken(ctx context.Context, refreshToken string) (TokenResult, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger
