package content

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"debatecoach/agent/internal/types"
)

const maxCachedNotes = 256

type cachedResponse struct {
	Response  string
	Timestamp time.Time
}

// Cached memoizes StructureNotes, which speakers tend to re-run on the same
// notes. Other calls pass straight through.
type Cached struct {
	Generator

	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	notes map[string]cachedResponse
}

func NewCached(g Generator, ttl time.Duration) *Cached {
	return &Cached{Generator: g, ttl: ttl, now: time.Now, notes: make(map[string]cachedResponse)}
}

// cacheKey hashes the parts with a separator so ("ab","c") != ("a","bc").
func cacheKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func (c *Cached) StructureNotes(ctx context.Context, motion string, role types.Role, notes string) (string, error) {
	key := cacheKey(motion, string(role), notes)
	c.mu.Lock()
	if hit, ok := c.notes[key]; ok && c.now().Sub(hit.Timestamp) < c.ttl {
		c.mu.Unlock()
		metricCacheHits.WithLabelValues("hit").Inc()
		return hit.Response, nil
	}
	c.mu.Unlock()
	metricCacheHits.WithLabelValues("miss").Inc()

	out, err := c.Generator.StructureNotes(ctx, motion, role, notes)
	if err != nil {
		return out, err
	}
	c.mu.Lock()
	c.evictLocked()
	c.notes[key] = cachedResponse{Response: out, Timestamp: c.now()}
	c.mu.Unlock()
	return out, nil
}

func (c *Cached) evictLocked() {
	if len(c.notes) < maxCachedNotes {
		return
	}
	var oldest string
	var oldestAt time.Time
	for k, v := range c.notes {
		if c.now().Sub(v.Timestamp) >= c.ttl {
			delete(c.notes, k)
			continue
		}
		if oldest == "" || v.Timestamp.Before(oldestAt) {
			oldest, oldestAt = k, v.Timestamp
		}
	}
	if len(c.notes) >= maxCachedNotes && oldest != "" {
		delete(c.notes, oldest)
	}
}
