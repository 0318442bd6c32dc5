package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld means another run of the job holds the lock.
var ErrLockHeld = errors.New("reconciler: lock held by another run")

// Locker grants exclusive runs of a named job. The returned func releases the lock.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error)
}

// RedisLocker excludes runs across instances with a redsync mutex.
type RedisLocker struct {
	rs     *redsync.Redsync
	prefix string
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	pool := goredis.NewPool(client)
	return &RedisLocker{rs: redsync.New(pool), prefix: "memberpay:reconciler:"}
}

func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	mutex := l.rs.NewMutex(l.prefix+name,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockHeld, err)
	}
	return func() {
		if _, err := mutex.UnlockContext(context.Background()); err != nil {
			log.Warnf("[Reconciler] unlock %s: %v", name, err)
		}
	}, nil
}

// LocalLocker excludes runs inside one process. Used when Redis is not configured.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

func (l *LocalLocker) Acquire(_ context.Context, name string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] {
		return nil, ErrLockHeld
	}
	l.held[name] = true
	return func() {
		l.mu.Lock()
		delete(l.held, name)
		l.mu.Unlock()
	}, nil
}
