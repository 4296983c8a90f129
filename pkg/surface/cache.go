package surface

import (
	"fmt"
	"sync/atomic"

	v3 "github.com/deadsy/sdfx/vec/v3"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/chazu/brushcsg/pkg/kernel"
)

// Kind names one derivation cache.
type Kind uint8

const (
	KindPositions Kind = iota
	KindNormals
	KindUV
	KindLightmap
	kindCount
)

func (k Kind) String() string {
	switch k {
	case KindPositions:
		return "positions"
	case KindNormals:
		return "normals"
	case KindUV:
		return "uv"
	case KindLightmap:
		return "lightmap"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// CacheStats counts lookups of one cache kind.
type CacheStats struct {
	Hits   int64
	Misses int64
}

// CacheSizes bounds the entry count of each derivation cache.
type CacheSizes struct {
	Positions int
	Normals   int
	UV        int
	Lightmap  int
}

// DefaultCacheSizes returns the default bounds.
func DefaultCacheSizes() CacheSizes {
	return CacheSizes{Positions: 4096, Normals: 8192, UV: 8192, Lightmap: 8192}
}

// Cache memoizes each derivation step under the hash of its inputs:
//
//	positions: brush instance key, routing table hash, mesh hash
//	normals:   positions hash
//	uv:        positions hash, UV mapping hash
//	lightmap:  positions hash, lightmap scale
//
// so a change to one input only invalidates the steps that read it. Cache
// is safe for concurrent use.
type Cache struct {
	clips    *lru.Cache[uint64, *kernel.ClipResult]
	normals  *lru.Cache[uint64, []v3.Vec]
	uvs      *lru.Cache[uint64, []float32]
	lightmap *lru.Cache[uint64, []float32]

	hits   [kindCount]atomic.Int64
	misses [kindCount]atomic.Int64
}

// NewCache returns a cache bounded by sizes.
func NewCache(sizes CacheSizes) (*Cache, error) {
	c := &Cache{}
	var err error
	if c.clips, err = lru.New[uint64, *kernel.ClipResult](sizes.Positions); err != nil {
		return nil, fmt.Errorf("surface: positions cache: %w", err)
	}
	if c.normals, err = lru.New[uint64, []v3.Vec](sizes.Normals); err != nil {
		return nil, fmt.Errorf("surface: normals cache: %w", err)
	}
	if c.uvs, err = lru.New[uint64, []float32](sizes.UV); err != nil {
		return nil, fmt.Errorf("surface: uv cache: %w", err)
	}
	if c.lightmap, err = lru.New[uint64, []float32](sizes.Lightmap); err != nil {
		return nil, fmt.Errorf("surface: lightmap cache: %w", err)
	}
	return c, nil
}

// Stats returns the lookup counters of kind k.
func (c *Cache) Stats(k Kind) CacheStats {
	return CacheStats{Hits: c.hits[k].Load(), Misses: c.misses[k].Load()}
}

// Purge empties every cache. Counters are kept.
func (c *Cache) Purge() {
	c.clips.Purge()
	c.normals.Purge()
	c.uvs.Purge()
	c.lightmap.Purge()
}

func (c *Cache) record(k Kind, hit bool) {
	if hit {
		c.hits[k].Add(1)
		cacheLookups.WithLabelValues(k.String(), "hit").Inc()
		return
	}
	c.misses[k].Add(1)
	cacheLookups.WithLabelValues(k.String(), "miss").Inc()
}

// memo returns the cached value for key or computes and stores it. Two
// goroutines missing on the same key both compute; the values are equal.
func memo[V any](c *Cache, k Kind, cache *lru.Cache[uint64, V], key uint64, compute func() (V, error)) (V, error) {
	if v, ok := cache.Get(key); ok {
		c.record(k, true)
		return v, nil
	}
	c.record(k, false)
	v, err := compute()
	if err != nil {
		return v, err
	}
	cache.Add(key, v)
	return v, nil
}
