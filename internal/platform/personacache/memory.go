package personacache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/cukee-curation/internal/observability"
	"github.com/yungbote/cukee-curation/internal/platform/logger"
)

type memoryItem struct {
	value     string
	expiresAt time.Time
}

// memoryCache is the single-process fallback used when no redis is configured.
type memoryCache struct {
	log   *logger.Logger
	items sync.Map // key -> memoryItem
	now   func() time.Time

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMemory starts a janitor that drops expired entries every sweep
// interval; Close stops it.
func NewMemory(log *logger.Logger, sweep time.Duration) Cache {
	return newMemory(log, sweep, time.Now)
}

func newMemory(log *logger.Logger, sweep time.Duration, now func() time.Time) *memoryCache {
	if sweep <= 0 {
		sweep = time.Minute
	}
	c := &memoryCache{log: log.With("service", "MemoryPersonaCache"), now: now, stop: make(chan struct{})}
	c.wg.Add(1)
	go c.janitor(sweep)
	return c
}

func (c *memoryCache) janitor(every time.Duration) {
	defer c.wg.Done()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-t.C:
			if n := c.sweep(); n > 0 {
				c.log.Debug("persona cache swept", "expired", n)
			}
		}
	}
}

func (c *memoryCache) sweep() int {
	now := c.now()
	n := 0
	c.items.Range(func(k, v any) bool {
		if it := v.(memoryItem); !now.Before(it.expiresAt) {
			c.items.CompareAndDelete(k, v)
			n++
		}
		return true
	})
	return n
}

func (c *memoryCache) Backend() string { return "memory" }

func (c *memoryCache) Get(_ context.Context, sessionID string, movieID, ticketID int64) (string, bool) {
	v, ok := c.items.Load(Key(sessionID, movieID, ticketID))
	if !ok {
		observability.RecordCacheLookup(c.Backend(), "miss")
		return "", false
	}
	it := v.(memoryItem)
	if !c.now().Before(it.expiresAt) {
		observability.RecordCacheLookup(c.Backend(), "miss")
		return "", false
	}
	observability.RecordCacheLookup(c.Backend(), "hit")
	return it.value, true
}

func (c *memoryCache) Put(_ context.Context, sessionID string, movieID, ticketID int64, value string, ttl time.Duration) error {
	c.items.Store(Key(sessionID, movieID, ticketID), memoryItem{value: value, expiresAt: c.now().Add(ttlOrDefault(ttl))})
	return nil
}

func (c *memoryCache) each(sessionID string, fn func(key string, it memoryItem)) {
	now := c.now()
	prefix := keyPrefix + sessionID + ":"
	c.items.Range(func(k, v any) bool {
		key := k.(string)
		if !strings.HasPrefix(key, prefix) {
			return true
		}
		if sid, _, _, ok := parseKey(key); !ok || sid != sessionID {
			return true
		}
		if it := v.(memoryItem); now.Before(it.expiresAt) {
			fn(key, it)
		}
		return true
	})
}

func (c *memoryCache) ClearSession(_ context.Context, sessionID string) (int, error) {
	n := 0
	c.each(sessionID, func(key string, _ memoryItem) {
		if _, loaded := c.items.LoadAndDelete(key); loaded {
			n++
		}
	})
	return n, nil
}

func (c *memoryCache) SessionEntries(_ context.Context, sessionID string) ([]Entry, error) {
	var out []Entry
	c.each(sessionID, func(key string, it memoryItem) {
		if e, ok := decodeEntry(key, it.value); ok {
			out = append(out, e)
		}
	})
	sortEntries(out)
	return out, nil
}

func (c *memoryCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
		c.wg.Wait()
	})
	return nil
}
