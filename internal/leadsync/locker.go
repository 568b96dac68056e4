package leadsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another run holds the campaign.
var ErrLocked = errors.New("a sync is already running for this campaign")

// Locker serializes runs per campaign.
type Locker interface {
	// Acquire takes the lock for key or returns ErrLocked. The returned func
	// releases it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

func campaignLockKey(id uuid.UUID) string {
	return "leadsync:campaign:" + id.String()
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker uses SET NX PX so runs on different processes never overlap.
type RedisLocker struct {
	client redis.UniversalClient
}

// NewRedisLocker creates a locker on client.
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		_ = releaseScript.Run(context.WithoutCancel(ctx), l.client, []string{key}, token).Err()
	}, nil
}

// LocalLocker guards runs inside one process. It is used when Redis is not
// configured.
type LocalLocker struct {
	mu     sync.Mutex
	active map[string]bool
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{active: make(map[string]bool)}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active[key] {
		return nil, ErrLocked
	}
	l.active[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.active, key)
	}, nil
}
