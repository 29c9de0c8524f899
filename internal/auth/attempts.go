package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptStore はクライアントごとのログイン失敗回数を記録します。
type AttemptStore interface {
	// Locked はロック中であれば残り時間を返します。ロックされていなければ 0 です。
	Locked(ctx context.Context, key string) (time.Duration, error)
	// RecordFailure は失敗を1回記録し、ロックまでの残り回数を返します。
	RecordFailure(ctx context.Context, key string) (int, error)
	Reset(ctx context.Context, key string) error
}

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// MemoryAttemptStore はプロセス内で試行回数を保持します。
type MemoryAttemptStore struct {
	lock     sync.Mutex
	attempts map[string]*attemptState
	now      func() time.Time
}

// NewMemoryAttemptStore は MemoryAttemptStore を作成します。
func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{
		attempts: make(map[string]*attemptState),
		now:      time.Now,
	}
}

func (s *MemoryAttemptStore) Locked(_ context.Context, key string) (time.Duration, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	state, ok := s.attempts[key]
	if !ok {
		return 0, nil
	}
	now := s.now()
	if now.After(state.lockedUntil) {
		return 0, nil
	}
	return state.lockedUntil.Sub(now), nil
}

func (s *MemoryAttemptStore) RecordFailure(_ context.Context, key string) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	now := s.now()
	state, ok := s.attempts[key]
	if !ok {
		state = &attemptState{}
		s.attempts[key] = state
	}
	if state.count == 0 || now.Sub(state.firstAttempt) > loginWindow {
		state.count = 0
		state.firstAttempt = now
	}

	state.count++
	if state.count >= maxLoginAttempts {
		// ロックした時点でカウンターは破棄する。解除後は最初から数え直す
		state.lockedUntil = now.Add(lockDuration)
		state.count = 0
		return 0, nil
	}
	return maxLoginAttempts - state.count, nil
}

func (s *MemoryAttemptStore) Reset(_ context.Context, key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.attempts, key)
	return nil
}

const (
	attemptKeyPrefix = "login:attempts:"
	lockKeyPrefix    = "login:lock:"
)

// RedisAttemptStore は複数インスタンス間で試行回数を共有するために Redis を使います。
type RedisAttemptStore struct {
	rdb *redis.Client
}

// NewRedisAttemptStore は RedisAttemptStore を作成します。
func NewRedisAttemptStore(rdb *redis.Client) *RedisAttemptStore {
	return &RedisAttemptStore{rdb: rdb}
}

func (s *RedisAttemptStore) Locked(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.rdb.PTTL(ctx, lockKeyPrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read login lock: %w", err)
	}
	// キーが無い場合は -2、期限なしは -1 が返る
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

func (s *RedisAttemptStore) RecordFailure(ctx context.Context, key string) (int, error) {
	countKey := attemptKeyPrefix + key

	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, countKey)
	pipe.ExpireNX(ctx, countKey, loginWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to record login failure: %w", err)
	}

	count := int(incr.Val())
	if count >= maxLoginAttempts {
		if err := s.rdb.Set(ctx, lockKeyPrefix+key, 1, lockDuration).Err(); err != nil {
			return 0, fmt.Errorf("failed to lock login: %w", err)
		}
		_ = s.rdb.Del(ctx, countKey).Err()
		return 0, nil
	}
	return maxLoginAttempts - count, nil
}

func (s *RedisAttemptStore) Reset(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, attemptKeyPrefix+key, lockKeyPrefix+key).Err()
}
