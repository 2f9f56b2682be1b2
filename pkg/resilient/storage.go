// Package resilient wraps a storage.Blobstore with caller-side retry
// and circuit-breaker policies.
//
// The adapter contract deliberately leaves retries to the caller; this
// package is that caller-side layer for consumers that want it. Point
// operations (Exists, Unlink, Copy, SetACL, Move) are retried with
// exponential backoff. Streaming operations (Put, Get) are not retried,
// because their source reader and destination sink are consumed by the
// first attempt; they still get circuit-breaker protection.
//
// A missing object is a permanent condition: errors matching
// storage.ErrNotFound are never retried.
package resilient

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/casfs/depot/config"
	"github.com/casfs/depot/logger"
	"github.com/casfs/depot/pkg/circuitbreaker"
	"github.com/casfs/depot/pkg/retry"
	"github.com/casfs/depot/storage"
)

// ResilientStore decorates a Blobstore with per-operation-class circuit
// breakers and retry policies. It implements storage.Blobstore itself,
// so it can be dropped in wherever the plain adapter is used.
type ResilientStore struct {
	inner         storage.Blobstore
	backoff       retry.BackoffConfig
	readBreaker   *circuitbreaker.CircuitBreaker
	writeBreaker  *circuitbreaker.CircuitBreaker
	deleteBreaker *circuitbreaker.CircuitBreaker
}

// New wraps inner with the retry policy from cfg.
func New(inner storage.Blobstore, cfg config.ResilienceConfig) *ResilientStore {
	backoff := retry.BackoffConfig{
		InitialInterval: cfg.InitialIntervalDuration(),
		MaxInterval:     cfg.MaxIntervalDuration(),
		Multiplier:      2.0,
		Jitter:          true,
		MaxRetries:      cfg.MaxRetries,
	}

	logChange := func(name string, from, to circuitbreaker.State) {
		logger.Warn("storage circuit breaker state changed",
			"breaker", name, "from", from.String(), "to", to.String())
	}

	readSettings := circuitbreaker.DefaultSettings("storage_read")
	readSettings.OnStateChange = logChange
	writeSettings := circuitbreaker.DefaultSettings("storage_write")
	writeSettings.OnStateChange = logChange
	deleteSettings := circuitbreaker.DefaultSettings("storage_delete")
	deleteSettings.OnStateChange = logChange

	return &ResilientStore{
		inner:         inner,
		backoff:       backoff,
		readBreaker:   circuitbreaker.NewCircuitBreaker(readSettings),
		writeBreaker:  circuitbreaker.NewCircuitBreaker(writeSettings),
		deleteBreaker: circuitbreaker.NewCircuitBreaker(deleteSettings),
	}
}

// Inner returns the wrapped Blobstore.
func (rs *ResilientStore) Inner() storage.Blobstore {
	return rs.inner
}

// Put runs a single attempt through the write breaker; the source
// stream cannot be replayed.
func (rs *ResilientStore) Put(ctx context.Context, key string, src io.Reader) (storage.PutResult, error) {
	var res storage.PutResult
	err := rs.writeBreaker.Do(func() error {
		var putErr error
		res, putErr = rs.inner.Put(ctx, key, src)
		return putErr
	})
	return res, err
}

// Get runs a single attempt through the read breaker; a retry would
// write duplicate bytes into dst.
func (rs *ResilientStore) Get(ctx context.Context, key string, dst io.Writer, opts storage.GetOptions) error {
	return rs.readBreaker.Do(func() error {
		return rs.inner.Get(ctx, key, dst, opts)
	})
}

// Move is retried as a whole: the copy step overwrites idempotently and
// the delete step is idempotent, so a replay converges on the same
// final state.
func (rs *ResilientStore) Move(ctx context.Context, srcKey, dstKey string) error {
	return rs.withRetry(ctx, rs.writeBreaker, func() error {
		return rs.inner.Move(ctx, srcKey, dstKey)
	})
}

func (rs *ResilientStore) Copy(ctx context.Context, srcKey, dstKey string, opts storage.CopyOptions) (storage.CopyResult, error) {
	var res storage.CopyResult
	err := rs.withRetry(ctx, rs.writeBreaker, func() error {
		var copyErr error
		res, copyErr = rs.inner.Copy(ctx, srcKey, dstKey, opts)
		return copyErr
	})
	return res, err
}

func (rs *ResilientStore) Exists(ctx context.Context, key string) (bool, error) {
	var found bool
	err := rs.withRetry(ctx, rs.readBreaker, func() error {
		var existsErr error
		found, existsErr = rs.inner.Exists(ctx, key)
		return existsErr
	})
	return found, err
}

func (rs *ResilientStore) Unlink(ctx context.Context, key string) error {
	return rs.withRetry(ctx, rs.deleteBreaker, func() error {
		return rs.inner.Unlink(ctx, key)
	})
}

func (rs *ResilientStore) SetACL(ctx context.Context, key string, acl string) error {
	return rs.withRetry(ctx, rs.writeBreaker, func() error {
		return rs.inner.SetACL(ctx, key, acl)
	})
}

func (rs *ResilientStore) Location(key string) string {
	return rs.inner.Location(key)
}

func (rs *ResilientStore) withRetry(ctx context.Context, breaker *circuitbreaker.CircuitBreaker, fn func() error) error {
	return retry.WithRetry(ctx, func() error {
		err := breaker.Do(fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return retry.Stop(err)
		}
		return err
	}, rs.backoff)
}

// isRetryable reports whether an error is plausibly transient. Missing
// objects and open breakers are permanent for the purpose of one call.
func isRetryable(err error) bool {
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) ||
		errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := strings.ToLower(err.Error())
	transient := []string{
		"connection refused",
		"connection reset",
		"connection timeout",
		"i/o timeout",
		"network unreachable",
		"no such host",
		"temporary failure",
		"service unavailable",
		"internal server error",
		"bad gateway",
		"gateway timeout",
		"slowdown",
		"throttling",
		"rate limit",
	}
	for _, s := range transient {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}
