package oidc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/patrickmn/go-cache"
)

// JWKProvider fetches and caches an issuer's JSON Web Key Set. Grounded
// directly on LerianStudio-midaz's JWKProvider: a URI, a cache.Cache keyed
// by that URI, and a sync.Once that lazily constructs the cache so a
// zero-value JWKProvider never panics.
type JWKProvider struct {
	URI           string
	CacheDuration time.Duration

	cache *cache.Cache
	once  sync.Once
}

// Fetch returns the cached key set for p.URI, fetching and caching it on a
// miss or expiry.
func (p *JWKProvider) Fetch(ctx context.Context) (jwk.Set, error) {
	p.once.Do(func() {
		p.cache = cache.New(p.CacheDuration, p.CacheDuration)
	})

	if set, found := p.cache.Get(p.URI); found {
		return set.(jwk.Set), nil
	}

	set, err := jwk.Fetch(ctx, p.URI)
	if err != nil {
		return nil, fmt.Errorf("oidc: fetch jwks from %s: %w", p.URI, err)
	}

	p.cache.Set(p.URI, set, p.CacheDuration)
	return set, nil
}
