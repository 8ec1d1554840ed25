package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var (
	ErrLockNotConfigured = errors.New("lock_not_configured")
	ErrLockHeld          = errors.New("lock_held")
)

// Deletes the key only if it still holds our token.
const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker is a single-key SET NX lease. It does not renew: callers pick a TTL
// longer than the guarded work.
type Locker struct {
	client *redis.Client
	script *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(lockReleaseScript),
	}
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, ErrLockNotConfigured
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil || key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}

// WithLock runs fn while holding key. It returns ErrLockHeld without running
// fn when another holder owns the key.
func (l *Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	token, ok, err := l.TryLock(ctx, key, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}
	defer func() {
		// Release even when ctx is already cancelled.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = l.Release(releaseCtx, key, token)
	}()
	return fn(ctx)
}
