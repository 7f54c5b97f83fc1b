package personacache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/cukee-curation/internal/observability"
	"github.com/yungbote/cukee-curation/internal/platform/logger"
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

type redisCache struct {
	log *logger.Logger
	rdb *goredis.Client
}

// NewRedis connects and pings; the caller falls back to memory on error.
func NewRedis(log *logger.Logger, opts RedisOptions) (Cache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisFromClient(log, rdb), nil
}

func NewRedisFromClient(log *logger.Logger, rdb *goredis.Client) Cache {
	return &redisCache{log: log.With("service", "RedisPersonaCache"), rdb: rdb}
}

func (c *redisCache) Backend() string { return "redis" }

func (c *redisCache) Get(ctx context.Context, sessionID string, movieID, ticketID int64) (string, bool) {
	v, err := c.rdb.Get(ctx, Key(sessionID, movieID, ticketID)).Result()
	switch {
	case errors.Is(err, goredis.Nil):
		observability.RecordCacheLookup(c.Backend(), "miss")
		return "", false
	case err != nil:
		c.log.Warn("persona cache get failed", "session_id", sessionID, "movie_id", movieID, "error", err)
		observability.RecordCacheLookup(c.Backend(), "error")
		return "", false
	}
	observability.RecordCacheLookup(c.Backend(), "hit")
	return v, true
}

func (c *redisCache) Put(ctx context.Context, sessionID string, movieID, ticketID int64, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, Key(sessionID, movieID, ticketID), value, ttlOrDefault(ttl)).Err()
}

func (c *redisCache) sessionKeys(ctx context.Context, sessionID string) ([]string, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, keyPrefix+escapeGlob(sessionID)+":*", 200).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		// the glob also matches sessions that extend this one with ':'
		if sid, _, _, ok := parseKey(key); ok && sid == sessionID {
			keys = append(keys, key)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (c *redisCache) ClearSession(ctx context.Context, sessionID string) (int, error) {
	keys, err := c.sessionKeys(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("scan session keys: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("delete session keys: %w", err)
	}
	c.log.Info("persona cache cleared", "session_id", sessionID, "deleted", n)
	return int(n), nil
}

func (c *redisCache) SessionEntries(ctx context.Context, sessionID string) ([]Entry, error) {
	keys, err := c.sessionKeys(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("scan session keys: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read session keys: %w", err)
	}
	out := make([]Entry, 0, len(keys))
	for i, raw := range vals {
		s, ok := raw.(string)
		if !ok {
			continue // expired between SCAN and MGET
		}
		if e, ok := decodeEntry(keys[i], s); ok {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

func (c *redisCache) Close() error { return c.rdb.Close() }

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func sortEntries(es []Entry) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].MovieID != es[j].MovieID {
			return es[i].MovieID < es[j].MovieID
		}
		return es[i].TicketID < es[j].TicketID
	})
}
