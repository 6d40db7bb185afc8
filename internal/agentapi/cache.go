package agentapi

import (
	"context"
	"time"

	"agentmcp/internal/credential"

	gocache "github.com/patrickmn/go-cache"
)

const (
	DefaultCatalogTTL = 5 * time.Minute
	catalogCleanup    = 10 * time.Minute
)

// Catalog is the part of Client whose answers rarely change.
type Catalog interface {
	ListModels(ctx context.Context) (ModelList, error)
	ListRepositories(ctx context.Context) (RepositoryList, error)
}

// CatalogCache memoizes model and repository listings per credential. The
// repositories endpoint is heavily rate limited upstream.
type CatalogCache struct {
	cache *gocache.Cache
}

func NewCatalogCache(ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &CatalogCache{cache: gocache.New(ttl, catalogCleanup)}
}

func (c *CatalogCache) Models(ctx context.Context, key credential.Credential, src Catalog) (ModelList, error) {
	return cached(c, "models:"+credential.Fingerprint(key), func() (ModelList, error) {
		return src.ListModels(ctx)
	})
}

func (c *CatalogCache) Repositories(ctx context.Context, key credential.Credential, src Catalog) (RepositoryList, error) {
	return cached(c, "repos:"+credential.Fingerprint(key), func() (RepositoryList, error) {
		return src.ListRepositories(ctx)
	})
}

// Flush drops every cached listing.
func (c *CatalogCache) Flush() { c.cache.Flush() }

// cached stores only successful responses.
func cached[T any](c *CatalogCache, key string, load func() (T, error)) (T, error) {
	if v, ok := c.cache.Get(key); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}
	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	c.cache.SetDefault(key, v)
	return v, nil
}
