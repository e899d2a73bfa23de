// Package lock serializes read-modify-write sections per key (one key per user).
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// Locker acquires an exclusive lock on key. The returned release function
// must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Local is an in-process keyed mutex. Entries are dropped once no goroutine
// holds or waits on them.
type Local struct {
	mu    sync.Mutex
	locks map[string]*localEntry
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

// NewLocal creates an in-process locker.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*localEntry)}
}

// Acquire blocks until key is free or ctx is done.
func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &localEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, entry)
		return nil, fmt.Errorf("failed to acquire lock %q: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.ch
			l.unref(key, entry)
		})
	}, nil
}

func (l *Local) unref(key string, entry *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
}

// Redis is a distributed locker built on redsync, for running several
// service instances against one database.
type Redis struct {
	rs     *redsync.Redsync
	expiry time.Duration
}

// NewRedis creates a redsync-backed locker. expiry bounds how long a crashed
// holder can keep a key locked.
func NewRedis(client redis.UniversalClient, expiry time.Duration) *Redis {
	return &Redis{
		rs:     redsync.New(goredis.NewPool(client)),
		expiry: expiry,
	}
}

// Acquire retries until key is free, ctx is done or redsync gives up.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	mutex := r.rs.NewMutex(
		"lock:"+key,
		redsync.WithExpiry(r.expiry),
		redsync.WithTries(64),
		redsync.WithRetryDelay(50*time.Millisecond),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// nolint:errcheck // expiry releases the key if unlock fails
			mutex.UnlockContext(context.Background())
		})
	}, nil
}

var (
	_ Locker = (*Local)(nil)
	_ Locker = (*Redis)(nil)
)
