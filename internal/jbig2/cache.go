package jbig2

import (
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the number of decoded segment payloads a document
// keeps when the configuration does not say otherwise.
const DefaultCacheSize = 256

// payloadCache memoizes segment payloads with least-recently-used
// eviction. Loads of the same segment are collapsed into one.
type payloadCache struct {
	lru   *lru.Cache[SegmentID, SegmentData]
	group singleflight.Group
}

func newPayloadCache(size int, log *slog.Logger) (*payloadCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.NewWithEvict(size, func(id SegmentID, _ SegmentData) {
		log.Debug("segment payload evicted", "segment", id.String())
	})
	if err != nil {
		return nil, err
	}
	return &payloadCache{lru: c}, nil
}

// get returns the cached payload of id, calling load on a miss. Only
// successful loads are cached.
func (c *payloadCache) get(id SegmentID, load func() (SegmentData, error)) (SegmentData, error) {
	if p, ok := c.lru.Get(id); ok {
		return p, nil
	}
	v, err, _ := c.group.Do(id.String(), func() (any, error) {
		if p, ok := c.lru.Get(id); ok {
			return p, nil
		}
		p, err := load()
		if err != nil {
			return nil, err
		}
		c.lru.Add(id, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(SegmentData), nil
}

func (c *payloadCache) remove(id SegmentID) { c.lru.Remove(id) }

func (c *payloadCache) contains(id SegmentID) bool { return c.lru.Contains(id) }

func (c *payloadCache) len() int { return c.lru.Len() }
