package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/backsnote/backsnote/api/internal/core/domain"
)

const (
	keyPrefix  = "backs-note-cache-"
	DefaultTTL = 24 * time.Hour
	opTimeout  = 2 * time.Second
)

type entry struct {
	Data      domain.Note `json:"data"`
	Timestamp int64       `json:"timestamp"` // unix millis
}

// RedisNoteCache keeps recently read notes, still encrypted, in Redis.
// With no client it runs in no-op mode. Every failure is logged and swallowed.
type RedisNoteCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

var _ domain.NoteCache = (*RedisNoteCache)(nil)

// NewRedisNoteCache connects to addr. An empty addr yields a no-op cache.
func NewRedisNoteCache(addr string, ttl time.Duration, logger *slog.Logger) *RedisNoteCache {
	c := &RedisNoteCache{ttl: ttl, logger: logger, now: time.Now}
	if ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if addr != "" {
		c.rdb = redis.NewClient(&redis.Options{Addr: addr})
	}
	return c
}

func (c *RedisNoteCache) enabled() bool { return c.rdb != nil }

func key(id string) string { return keyPrefix + id }

func (c *RedisNoteCache) Get(ctx context.Context, id string) *domain.Note {
	if !c.enabled() {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := c.rdb.Get(ctx, key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Error("Failed to retrieve cached note", slog.String("note_id", id), slog.String("error", err.Error()))
		}
		return nil
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Error("Corrupt cache entry, removing", slog.String("note_id", id), slog.String("error", err.Error()))
		c.Clear(ctx, id)
		return nil
	}

	if c.now().Sub(time.UnixMilli(e.Timestamp)) > c.ttl {
		c.Clear(ctx, id)
		c.logger.Debug("Cached note expired", slog.String("note_id", id))
		return nil
	}

	c.logger.Debug("Note retrieved from cache", slog.String("note_id", id))
	return &e.Data
}

func (c *RedisNoteCache) Save(ctx context.Context, note *domain.Note) {
	if !c.enabled() || note == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := json.Marshal(entry{Data: *note, Timestamp: c.now().UnixMilli()})
	if err != nil {
		c.logger.Error("Failed to encode note for cache", slog.String("note_id", note.ID), slog.String("error", err.Error()))
		return
	}
	if err := c.rdb.Set(ctx, key(note.ID), raw, c.ttl).Err(); err != nil {
		c.logger.Error("Failed to cache note", slog.String("note_id", note.ID), slog.String("error", err.Error()))
		return
	}
	c.logger.Debug("Note cached successfully", slog.String("note_id", note.ID))
}

func (c *RedisNoteCache) Clear(ctx context.Context, id string) {
	if !c.enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.rdb.Del(ctx, key(id)).Err(); err != nil {
		c.logger.Error("Failed to clear note cache", slog.String("note_id", id), slog.String("error", err.Error()))
	}
}

// ClearAll removes every cached note, leaving unrelated keys alone.
func (c *RedisNoteCache) ClearAll(ctx context.Context) {
	if !c.enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 4*opTimeout)
	defer cancel()

	var (
		cursor  uint64
		cleared int
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			c.logger.Error("Failed to clear all caches", slog.String("error", err.Error()))
			return
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				c.logger.Error("Failed to clear all caches", slog.String("error", err.Error()))
				return
			}
			cleared += len(keys)
		}
		if cursor = next; cursor == 0 {
			break
		}
	}
	c.logger.Info("All note caches cleared", slog.Int("count", cleared))
}

// Close releases the Redis client.
func (c *RedisNoteCache) Close() error {
	if !c.enabled() {
		return nil
	}
	return c.rdb.Close()
}

// Ping reports whether Redis is reachable. A disabled cache is always healthy.
func (c *RedisNoteCache) Ping(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}
