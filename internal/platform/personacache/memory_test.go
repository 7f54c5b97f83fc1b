package personacache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/yungbote/cukee-curation/internal/platform/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryRoundTripAndClear(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	c := NewMemory(logger.NewNop(), time.Hour)
	defer c.Close()

	if _, ok := c.Get(ctx, "s1", 1, 1); ok {
		t.Fatalf("expected miss on empty cache")
	}
	if err := c.Put(ctx, "s1", 1, 1, "A|B", 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_ = c.Put(ctx, "s1", 2, 1, EncodeValue("T2", "D2"), 0)
	_ = c.Put(ctx, "s1:x", 3, 1, "other session", 0)
	_ = c.Put(ctx, "s2", 1, 1, "other session", 0)

	if v, ok := c.Get(ctx, "s1", 1, 1); !ok || v != "A|B" {
		t.Fatalf("Get: got=(%q,%v) want=(A|B,true)", v, ok)
	}

	entries, err := c.SessionEntries(ctx, "s1")
	if err != nil {
		t.Fatalf("SessionEntries: %v", err)
	}
	if len(entries) != 2 || entries[0].Title != "A" || entries[1].Detail != "D2" {
		t.Fatalf("SessionEntries: got=%+v", entries)
	}

	n, err := c.ClearSession(ctx, "s1")
	if err != nil || n != 2 {
		t.Fatalf("ClearSession: got=(%d,%v) want=(2,nil)", n, err)
	}
	if _, ok := c.Get(ctx, "s1", 1, 1); ok {
		t.Fatalf("expected miss after clear")
	}
	if _, ok := c.Get(ctx, "s2", 1, 1); !ok {
		t.Fatalf("other session was cleared")
	}
	if _, ok := c.Get(ctx, "s1:x", 3, 1); !ok {
		t.Fatalf("prefix-sharing session was cleared")
	}
	if n, _ := c.ClearSession(ctx, "nobody"); n != 0 {
		t.Fatalf("ClearSession on unknown session: got=%d want=0", n)
	}
}

func TestMemoryExpiry(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newMemory(logger.NewNop(), time.Hour, clock.Now)
	defer c.Close()

	_ = c.Put(ctx, "s", 1, 1, "v", time.Minute)
	clock.Advance(30 * time.Second)
	_ = c.Put(ctx, "s", 1, 1, "v2", time.Minute) // ttl restarts
	clock.Advance(45 * time.Second)
	if v, ok := c.Get(ctx, "s", 1, 1); !ok || v != "v2" {
		t.Fatalf("Get before expiry: got=(%q,%v)", v, ok)
	}
	clock.Advance(time.Minute)
	if _, ok := c.Get(ctx, "s", 1, 1); ok {
		t.Fatalf("expected expired entry to miss")
	}
	if n := c.sweep(); n != 1 {
		t.Fatalf("sweep: got=%d want=1", n)
	}
}

func TestMemoryConcurrentPuts(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	c := NewMemory(logger.NewNop(), 10*time.Millisecond)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.Put(ctx, "s", int64(i%4), 1, fmt.Sprintf("v%d", i), 0)
			c.Get(ctx, "s", int64(i%4), 1)
		}(i)
	}
	wg.Wait()

	entries, _ := c.SessionEntries(ctx, "s")
	if len(entries) != 4 {
		t.Fatalf("entries: got=%d want=4", len(entries))
	}
}
