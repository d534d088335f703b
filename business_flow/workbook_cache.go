package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CachedImport is a parsed workbook waiting for its mapping to be confirmed
type CachedImport struct {
	Owner     string    `json:"owner"`
	Filename  string    `json:"filename"`
	Workbook  *Workbook `json:"workbook"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkbookCache holds parsed workbooks between the preview and confirm steps
type WorkbookCache interface {
	Put(ctx context.Context, entry *CachedImport) (string, error)
	Get(ctx context.Context, token string) (*CachedImport, error)
	Delete(ctx context.Context, token string) error
}

func redisKey(prefix string, parts ...string) string {
	return prefix + strings.Join(parts, ":")
}

// RedisWorkbookCache stores imports as JSON values with a TTL
type RedisWorkbookCache struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisWorkbookCache creates a redis backed workbook cache
func NewRedisWorkbookCache(rc *redis.Client, prefix string, ttl time.Duration) *RedisWorkbookCache {
	return &RedisWorkbookCache{rc: rc, prefix: prefix, ttl: ttl}
}

func (c *RedisWorkbookCache) key(token string) string {
	return redisKey(c.prefix, "import", token)
}

// Put stores the entry under a new token
func (c *RedisWorkbookCache) Put(ctx context.Context, entry *CachedImport) (string, error) {
	bs, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("encode import: %w", err)
	}
	token := uuid.NewString()
	if err := c.rc.Set(ctx, c.key(token), bs, c.ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCacheNotAvailable, err)
	}
	return token, nil
}

// Get loads the entry stored under token
func (c *RedisWorkbookCache) Get(ctx context.Context, token string) (*CachedImport, error) {
	bs, err := c.rc.Get(ctx, c.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrImportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheNotAvailable, err)
	}
	var entry CachedImport
	if err := json.Unmarshal(bs, &entry); err != nil {
		return nil, fmt.Errorf("decode import: %w", err)
	}
	return &entry, nil
}

// Delete drops the entry stored under token
func (c *RedisWorkbookCache) Delete(ctx context.Context, token string) error {
	return c.rc.Del(ctx, c.key(token)).Err()
}

type memoryImport struct {
	entry   *CachedImport
	expires time.Time
}

// MemoryWorkbookCache keeps imports in process memory
type MemoryWorkbookCache struct {
	mu      sync.Mutex
	entries map[string]memoryImport
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryWorkbookCache creates an in-process workbook cache
func NewMemoryWorkbookCache(ttl time.Duration) *MemoryWorkbookCache {
	return &MemoryWorkbookCache{
		entries: make(map[string]memoryImport),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores the entry under a new token
func (c *MemoryWorkbookCache) Put(_ context.Context, entry *CachedImport) (string, error) {
	token := uuid.NewString()
	c.mu.Lock()
	c.entries[token] = memoryImport{entry: entry, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return token, nil
}

// Get loads the entry stored under token
func (c *MemoryWorkbookCache) Get(_ context.Context, token string) (*CachedImport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.entries[token]
	if !ok {
		return nil, ErrImportNotFound
	}
	if c.now().After(item.expires) {
		delete(c.entries, token)
		return nil, ErrImportNotFound
	}
	return item.entry, nil
}

// Delete drops the entry stored under token
func (c *MemoryWorkbookCache) Delete(_ context.Context, token string) error {
	c.mu.Lock()
	delete(c.entries, token)
	c.mu.Unlock()
	return nil
}

// Sweep removes expired entries and returns how many were dropped
func (c *MemoryWorkbookCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for token, item := range c.entries {
		if now.After(item.expires) {
			delete(c.entries, token)
			n++
		}
	}
	return n
}

// StartJanitor sweeps expired entries every interval until the returned stop
// is called. A non-positive interval falls back to one minute.
func (c *MemoryWorkbookCache) StartJanitor(parent context.Context, interval time.Duration) func() {
	ctx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
	return cancel
}
