package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	keyUserLock      = "bot:user:lock:%d"
	defaultUserTTL   = 2 * time.Minute
	userLockInterval = 25 * time.Millisecond
)

// UserLocker serializes the handling of events that belong to one user.
type UserLocker interface {
	Lock(ctx context.Context, userID int64) (func(), error)
}

// KeyedMutex is an in-process UserLocker. Entries are reference counted and
// dropped once no goroutine holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*keyedEntry
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[int64]*keyedEntry)}
}

func (m *KeyedMutex) Lock(ctx context.Context, userID int64) (func(), error) {
	m.mu.Lock()
	entry, ok := m.locks[userID]
	if !ok {
		entry = &keyedEntry{ch: make(chan struct{}, 1)}
		m.locks[userID] = entry
	}
	entry.refs++
	m.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		m.drop(userID, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.ch
			m.drop(userID, entry)
		})
	}, nil
}

func (m *KeyedMutex) drop(userID int64, entry *keyedEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(m.locks, userID)
	}
}

// Len reports how many users currently hold or wait for a lock.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// RedisUserLocker spans replicas. The local mutex is taken first so one
// process never polls redis against itself.
type RedisUserLocker struct {
	locker *Locker
	local  *KeyedMutex
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisUserLocker(locker *Locker, log *zap.Logger) *RedisUserLocker {
	return &RedisUserLocker{
		locker: locker,
		local:  NewKeyedMutex(),
		ttl:    defaultUserTTL,
		log:    log.Named("ratelimit.user_lock"),
	}
}

func (l *RedisUserLocker) Lock(ctx context.Context, userID int64) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf(keyUserLock, userID)
	ticker := time.NewTicker(userLockInterval)
	defer ticker.Stop()

	for {
		token, ok, err := l.locker.TryLock(ctx, key, l.ttl)
		if err != nil {
			unlockLocal()
			return nil, err
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
				defer cancel()
				if err := l.locker.Release(releaseCtx, key, token); err != nil {
					l.log.Warn("release user lock failed", zap.Int64("user_id", userID), zap.Error(err))
				}
				unlockLocal()
			}, nil
		}

		select {
		case <-ctx.Done():
			unlockLocal()
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
