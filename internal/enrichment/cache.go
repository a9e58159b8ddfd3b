package enrichment

import (
	"log/slog"
	"time"

	"github.com/coocood/freecache"
	json "github.com/goccy/go-json"
)

// Cache remembers successful identifications by barcode
type Cache interface {
	Get(code, format string) (*ProductInfo, bool)
	Set(code, format string, info ProductInfo)
}

// MemoryCache implements Cache on top of freecache
type MemoryCache struct {
	cache *freecache.Cache
	ttl   int
}

// NewCache creates an in-memory cache of sizeMB megabytes. A non-positive size
// disables caching.
func NewCache(sizeMB int, ttl time.Duration) Cache {
	if sizeMB <= 0 {
		return noopCache{}
	}
	return &MemoryCache{
		cache: freecache.NewCache(sizeMB * 1024 * 1024),
		ttl:   max(int(ttl.Seconds()), 0),
	}
}

func cacheKey(code, format string) []byte {
	return []byte(format + "|" + code)
}

// Get returns the cached identification for a barcode
func (c *MemoryCache) Get(code, format string) (*ProductInfo, bool) {
	data, err := c.cache.Get(cacheKey(code, format))
	if err != nil {
		return nil, false
	}
	var info ProductInfo
	if err := json.Unmarshal(data, &info); err != nil {
		slog.Warn("Dropping unreadable cache entry", "code", code, "format", format, "error", err)
		c.cache.Del(cacheKey(code, format))
		return nil, false
	}
	return &info, true
}

// Set stores an identification for a barcode
func (c *MemoryCache) Set(code, format string, info ProductInfo) {
	data, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := c.cache.Set(cacheKey(code, format), data, c.ttl); err != nil {
		slog.Warn("Failed to cache product info", "code", code, "error", err)
	}
}

type noopCache struct{}

func (noopCache) Get(_, _ string) (*ProductInfo, bool) { return nil, false }
func (noopCache) Set(_, _ string, _ ProductInfo)       {}
