package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SentSetStore keeps the ids messaged during a working session, per scope
type SentSetStore interface {
	Add(ctx context.Context, scope, id string) error
	Members(ctx context.Context, scope string) (SentSet, error)
	Reset(ctx context.Context, scope string) error
}

// SentScope is the sent-set scope of one user working on one upload
func SentScope(email string, uploadID uint) string {
	return email + ":" + strconv.FormatUint(uint64(uploadID), 10)
}

// RedisSentSetStore keeps sent sets as redis sets that expire after ttl of inactivity
type RedisSentSetStore struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSentSetStore creates a redis backed sent-set store
func NewRedisSentSetStore(rc *redis.Client, prefix string, ttl time.Duration) *RedisSentSetStore {
	return &RedisSentSetStore{rc: rc, prefix: prefix, ttl: ttl}
}

func (s *RedisSentSetStore) key(scope string) string {
	return redisKey(s.prefix, "sent", scope)
}

// Add records id as sent
func (s *RedisSentSetStore) Add(ctx context.Context, scope, id string) error {
	key := s.key(scope)
	_, err := s.rc.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, id)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheNotAvailable, err)
	}
	return nil
}

// Members returns the sent ids of scope
func (s *RedisSentSetStore) Members(ctx context.Context, scope string) (SentSet, error) {
	ids, err := s.rc.SMembers(ctx, s.key(scope)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheNotAvailable, err)
	}
	return NewSentSet(ids...), nil
}

// Reset forgets every sent id of scope
func (s *RedisSentSetStore) Reset(ctx context.Context, scope string) error {
	if err := s.rc.Del(ctx, s.key(scope)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheNotAvailable, err)
	}
	return nil
}

// MemorySentSetStore keeps sent sets in process memory
type MemorySentSetStore struct {
	mu   sync.Mutex
	sets map[string]SentSet
}

// NewMemorySentSetStore creates an in-process sent-set store
func NewMemorySentSetStore() *MemorySentSetStore {
	return &MemorySentSetStore{sets: make(map[string]SentSet)}
}

// Add records id as sent
func (s *MemorySentSetStore) Add(_ context.Context, scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[scope]
	if !ok {
		set = make(SentSet)
		s.sets[scope] = set
	}
	set[id] = struct{}{}
	return nil
}

// Members returns a copy of the sent ids of scope
func (s *MemorySentSetStore) Members(_ context.Context, scope string) (SentSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(SentSet, len(s.sets[scope]))
	for id := range s.sets[scope] {
		out[id] = struct{}{}
	}
	return out, nil
}

// Reset forgets every sent id of scope
func (s *MemorySentSetStore) Reset(_ context.Context, scope string) error {
	s.mu.Lock()
	delete(s.sets, scope)
	s.mu.Unlock()
	return nil
}
