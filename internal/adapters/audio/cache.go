package audio

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// defaultCacheBytes bounds the payloads kept for reuse across callers.
const defaultCacheBytes = 128 << 20

type fetchFunc func(ctx context.Context, url string) ([]byte, error)

// trackCache shares one download of a track between the duration probe and
// the first Play. Concurrent requests for a URL join the leader's download,
// which runs under the leader's context.
type trackCache struct {
	flight singleflight.Group
	fetch  fetchFunc
	limit  int

	mu      sync.Mutex
	entries map[string][]byte
	order   []string
	size    int
}

func newTrackCache(fetch fetchFunc, limit int) *trackCache {
	return &trackCache{
		fetch:   fetch,
		limit:   limit,
		entries: make(map[string][]byte),
	}
}

func (c *trackCache) get(ctx context.Context, url string) ([]byte, error) {
	c.mu.Lock()
	data, ok := c.entries[url]
	c.mu.Unlock()
	if ok {
		return data, nil
	}

	v, err, _ := c.flight.Do(url, func() (any, error) {
		data, err := c.fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		c.put(url, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// put stores data and evicts the oldest entries beyond the byte limit. A
// payload larger than the limit is not kept.
func (c *trackCache) put(url string, data []byte) {
	if len(data) > c.limit {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[url]; ok {
		return
	}
	c.entries[url] = data
	c.order = append(c.order, url)
	c.size += len(data)
	for c.size > c.limit && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		c.size -= len(c.entries[oldest])
		delete(c.entries, oldest)
	}
}

func (c *trackCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
