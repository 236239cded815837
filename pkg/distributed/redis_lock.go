package distributed

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("lock not acquired")
	ErrLockNotHeld     = errors.New("lock not held")
)

// 자신이 획득한 락만 해제
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// RedisLock Redis 기반 분산 락
type RedisLock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

// RedisLockManager Redis 분산 락 관리자
type RedisLockManager struct {
	client *redis.Client
	owner  string
}

// NewRedisLockManager Redis Lock Manager 생성. owner는 인스턴스 식별자 (비어 있으면 uuid)
func NewRedisLockManager(client *redis.Client, owner string) *RedisLockManager {
	if owner == "" {
		owner = uuid.NewString()
	}
	return &RedisLockManager{
		client: client,
		owner:  owner,
	}
}

// Owner 락 소유자 값
func (m *RedisLockManager) Owner() string {
	return m.owner
}

// AcquireLock 분산 락 획득 시도 (SET NX)
func (m *RedisLockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*RedisLock, error) {
	value := m.owner + ":" + uuid.NewString()
	success, err := m.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return nil, err
	}

	if !success {
		return nil, ErrLockNotAcquired
	}

	return &RedisLock{
		client: m.client,
		key:    key,
		value:  value,
		ttl:    ttl,
	}, nil
}

// WithLock 락을 잡은 경우에만 fn 실행. 락을 못 잡으면 ErrLockNotAcquired
func (m *RedisLockManager) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	lock, err := m.AcquireLock(ctx, key, ttl)
	if err != nil {
		return err
	}

	fnErr := fn(ctx)

	// fn이 ctx를 소진했어도 해제는 시도
	releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, ErrLockNotHeld) && fnErr == nil {
		return err
	}

	return fnErr
}

// Release 락 해제 (Lua 스크립트로 안전하게)
func (l *RedisLock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Int()
	if err != nil {
		return err
	}

	if result == 0 {
		return ErrLockNotHeld
	}

	return nil
}

// IsHeld 락이 현재 유효한지 확인
func (l *RedisLock) IsHeld(ctx context.Context) (bool, error) {
	value, err := l.client.Get(ctx, l.key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return value == l.value, nil
}
