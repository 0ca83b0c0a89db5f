package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fleetwatch/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	lockTTL             = 30 * time.Second
	lockAcquireTimeout  = 5 * time.Second
	lockExtendInterval  = 10 * time.Second
	maxLockHoldDuration = 2 * time.Minute
)

var (
	unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

	renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)
)

// DistributedLock mutual exclusion across server instances
type DistributedLock interface {
	// TryLock acquires the lock without waiting for it
	TryLock(ctx context.Context) (bool, error)

	// Unlock releases the lock if this instance still owns it
	Unlock(ctx context.Context) error

	IsHeld() bool
}

// RedisDistributedLock SET NX based lock with background renewal.
// A nil client means single-instance mode: TryLock always succeeds.
type RedisDistributedLock struct {
	client     *redis.Client
	key        string
	token      string
	ttl        time.Duration
	held       bool
	acquiredAt time.Time
	stopRenew  chan struct{}
	mu         sync.Mutex
}

// NewRedisDistributedLock creates a lock on key, e.g. "fleetwatch:lock:metrics-retention"
func NewRedisDistributedLock(client *redis.Client, key string) *RedisDistributedLock {
	return &RedisDistributedLock{
		client: client,
		key:    key,
		token:  uuid.NewString(),
		ttl:    lockTTL,
	}
}

// TryLock attempts to take the lock once
func (l *RedisDistributedLock) TryLock(ctx context.Context) (bool, error) {
	if l.client == nil {
		l.mu.Lock()
		l.held = true
		l.mu.Unlock()
		return true, nil
	}

	acquireCtx, cancel := context.WithTimeout(ctx, lockAcquireTimeout)
	defer cancel()

	acquired, err := l.client.SetNX(acquireCtx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	if !acquired {
		logger.DebugCtx(ctx, "lock %s held by another instance", l.key)
		return false, nil
	}

	l.mu.Lock()
	l.held = true
	l.acquiredAt = time.Now()
	// a fresh channel per acquisition so TryLock/Unlock can cycle
	l.stopRenew = make(chan struct{})
	stop := l.stopRenew
	l.mu.Unlock()

	go l.renew(ctx, stop)

	logger.DebugCtx(ctx, "lock %s acquired", l.key)
	return true, nil
}

// Unlock releases the lock
func (l *RedisDistributedLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	if l.stopRenew != nil {
		close(l.stopRenew)
		l.stopRenew = nil
	}
	wasHeld := l.held
	l.held = false
	l.mu.Unlock()

	if l.client == nil || !wasHeld {
		return nil
	}

	released, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	if released == 0 {
		logger.WarnCtx(ctx, "lock %s was already expired or taken over", l.key)
	}
	return nil
}

func (l *RedisDistributedLock) IsHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

func (l *RedisDistributedLock) renew(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(lockExtendInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			held := time.Since(l.acquiredAt)
			l.mu.Unlock()

			// stop renewing and let the key expire; Unlock still runs in the owner's defer
			if held > maxLockHoldDuration {
				logger.WarnCtx(ctx, "lock %s held for %.0fs, no longer renewing", l.key, held.Seconds())
				l.markLost()
				return
			}

			ok, err := renewScript.Run(ctx, l.client, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
			if err != nil || ok == 0 {
				logger.WarnCtx(ctx, "lock %s renewal failed, lock lost: %v", l.key, err)
				l.markLost()
				return
			}
		}
	}
}

func (l *RedisDistributedLock) markLost() {
	l.mu.Lock()
	l.held = false
	l.mu.Unlock()
}

// WithLock runs fn only if the lock could be taken; skipped reports whether another instance held it
func WithLock(ctx context.Context, l DistributedLock, fn func(ctx context.Context) error) (skipped bool, err error) {
	acquired, err := l.TryLock(ctx)
	if err != nil {
		return false, err
	}
	if !acquired {
		return true, nil
	}
	defer func() {
		if unlockErr := l.Unlock(ctx); unlockErr != nil {
			logger.WarnCtx(ctx, "%v", unlockErr)
		}
	}()
	return false, fn(ctx)
}
