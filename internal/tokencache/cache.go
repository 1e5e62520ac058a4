// Package tokencache keeps delegated CDN access tokens per principal so a
// token is minted once and reused until shortly before it expires.
package tokencache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	errpkg "github.com/veranemoloko/tgdl-core/internal/errors"
	"github.com/veranemoloko/tgdl-core/internal/metrics"
)

const (
	// DelegatedTokenValidity is the validity requested from the identity
	// service for every minted token.
	DelegatedTokenValidity = 24 * time.Hour

	// SafetyMargin is subtracted from the declared validity before a cached
	// token is considered stale, covering clock skew and in-flight requests.
	SafetyMargin = time.Hour

	// MintTimeout bounds a shared mint. The mint outlives the caller that
	// started it so other callers waiting on it still get a token.
	MintTimeout = 10 * time.Second
)

// Minter mints delegated tokens for a principal.
type Minter interface {
	MintDelegatedToken(ctx context.Context, principalID string, ttl time.Duration) (string, error)
}

// Token is a cached delegated credential.
type Token struct {
	PrincipalID string
	Value       string
	IssuedAt    time.Time
	// ExpiresAt is the validity declared to the identity service.
	ExpiresAt time.Time
	// UsableUntil is ExpiresAt minus SafetyMargin.
	UsableUntil time.Time
}

func (t Token) usable(now time.Time) bool {
	return now.Before(t.UsableUntil)
}

// Cache is a process-local map from principal id to its current token.
// It is safe for concurrent use; concurrent misses for the same principal
// share a single mint.
type Cache struct {
	minter Minter
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]Token
	group   singleflight.Group
}

type Option func(*Cache)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

func New(minter Minter, opts ...Option) *Cache {
	c := &Cache{
		minter:  minter,
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		entries: make(map[string]Token),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns a usable token for principalID, minting one if the cached
// token is missing or past its safety window.
func (c *Cache) Token(ctx context.Context, principalID string) (string, error) {
	if principalID == "" {
		return "", fmt.Errorf("%w: empty principal", errpkg.ErrTokenMintFailure)
	}

	if tok, ok := c.lookup(principalID); ok {
		metrics.TokenCacheHits.Inc()
		return tok.Value, nil
	}

	ch := c.group.DoChan(principalID, func() (any, error) {
		if tok, ok := c.lookup(principalID); ok {
			return tok, nil
		}
		mintCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), MintTimeout)
		defer cancel()
		return c.mint(mintCtx, principalID)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(Token).Value, nil
	}
}

// Invalidate drops the cached token of principalID, for example after the
// CDN rejected it.
func (c *Cache) Invalidate(principalID string) {
	c.mu.Lock()
	delete(c.entries, principalID)
	c.mu.Unlock()
}

func (c *Cache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) lookup(principalID string) (Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tok, ok := c.entries[principalID]
	if !ok {
		return Token{}, false
	}
	if !tok.usable(c.now()) {
		delete(c.entries, principalID)
		return Token{}, false
	}
	return tok, true
}

func (c *Cache) mint(ctx context.Context, principalID string) (Token, error) {
	issued := c.now()

	value, err := c.minter.MintDelegatedToken(ctx, principalID, DelegatedTokenValidity)
	if err != nil {
		metrics.TokenMints.WithLabelValues("error").Inc()
		c.logger.Warn("delegated token mint failed", "principal_id", principalID, "error", err)
		return Token{}, fmt.Errorf("%w: principal %s: %v", errpkg.ErrTokenMintFailure, principalID, err)
	}
	metrics.TokenMints.WithLabelValues("ok").Inc()

	expires := issued.Add(DelegatedTokenValidity)
	tok := Token{
		PrincipalID: principalID,
		Value:       value,
		IssuedAt:    issued,
		ExpiresAt:   expires,
		UsableUntil: expires.Add(-SafetyMargin),
	}

	c.mu.Lock()
	c.entries[principalID] = tok
	c.mu.Unlock()

	c.logger.Debug("delegated token minted", "principal_id", principalID, "usable_until", tok.UsableUntil)
	return tok, nil
}
