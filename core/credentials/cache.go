package credentials

import (
	"context"
	"sync"
	"time"
)

// DefaultTokenTTL is slightly shorter than the ten minutes issued speech
// tokens stay valid for.
const DefaultTokenTTL = 9 * time.Minute

// CachedSource reuses a token until its TTL elapses and refreshes it lazily
// on the next call. A single CachedSource is meant to be shared by every
// client presenting the same credential.
type CachedSource struct {
	source TokenSource
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type CacheOption func(*CachedSource)

// WithClock replaces the time source, mostly useful in tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *CachedSource) { c.now = now }
}

// NewCachedSource wraps source. A ttl of zero or less disables caching and
// every Token call goes to source.
func NewCachedSource(source TokenSource, ttl time.Duration, opts ...CacheOption) *CachedSource {
	c := &CachedSource{source: source, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CachedSource) Token(ctx context.Context) (string, error) {
	if c.ttl <= 0 {
		return c.source.Token(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, nil
	}

	fetchedAt := c.now()
	token, err := c.source.Token(ctx)
	if err != nil {
		c.token = ""
		return "", err
	}

	c.token = token
	c.expiresAt = fetchedAt.Add(c.ttl)
	logger.DebugContext(ctx, "refreshed bearer token", "expires_at", c.expiresAt)
	return token, nil
}

// Invalidate drops the cached token, e.g. after a service rejected it.
func (c *CachedSource) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiresAt = time.Time{}
}

// Invalidate drops the cached token of source when it caches at all.
func Invalidate(source TokenSource) {
	if invalidator, ok := source.(interface{ Invalidate() }); ok {
		invalidator.Invalidate()
	}
}
