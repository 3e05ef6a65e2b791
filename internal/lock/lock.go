// Package lock keeps two processes from running the same brand cycle at
// once. Locks live in redis; a nil *Locker grants every lock.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// ErrHeld reports that another holder owns the lock.
var ErrHeld = errors.New("lock held elsewhere")

type Locker struct {
	client *redis.Client
	script *redis.Script
	prefix string
}

func New(client *redis.Client, prefix string) *Locker {
	if client == nil {
		return nil
	}
	if prefix == "" {
		prefix = "lock:"
	}
	return &Locker{client: client, script: redis.NewScript(releaseScript), prefix: prefix}
}

// Dial connects to addr and checks the connection. An empty addr yields a
// nil Locker.
func Dial(ctx context.Context, addr, password string) (*Locker, error) {
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return New(client, "matchastock:lock:"), nil
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil {
		return "", true, nil
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release deletes the lock only if token still owns it.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{l.prefix + key}, token).Err()
}

// Do runs fn while holding key. It returns ErrHeld without running fn when
// the lock is taken.
func (l *Locker) Do(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	token, ok, err := l.TryLock(ctx, key, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrHeld
	}
	defer func() {
		// The cycle's context may already be done; release regardless.
		_ = l.Release(context.WithoutCancel(ctx), key, token)
	}()
	return fn(ctx)
}

func (l *Locker) Close() error {
	if l == nil {
		return nil
	}
	return l.client.Close()
}
