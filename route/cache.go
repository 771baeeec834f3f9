package route

import (
	"context"
	"time"

	"github.com/brunoga/deep"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedProvider memoizes another provider's results keyed by Request.Key.
// Callers always receive a deep copy so a cached route can never be shared
// between sessions.
type CachedProvider struct {
	next  Provider
	cache *expirable.LRU[string, *Route]
}

// NewCachedProvider wraps next with an LRU of the given size and TTL.
func NewCachedProvider(next Provider, size int, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		next:  next,
		cache: expirable.NewLRU[string, *Route](size, nil, ttl),
	}
}

// Route implements Provider.
func (p *CachedProvider) Route(ctx context.Context, req Request) (*Route, error) {
	key := req.Key()
	if r, ok := p.cache.Get(key); ok {
		return deep.Copy(r)
	}

	r, err := p.next.Route(ctx, req)
	if err != nil {
		return nil, err
	}
	p.cache.Add(key, r)
	return deep.Copy(r)
}

// Len returns the number of cached routes.
func (p *CachedProvider) Len() int {
	return p.cache.Len()
}
