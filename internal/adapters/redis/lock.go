package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/payment-fulfillment/internal/lock"
)

// releaseScript deletes the key only if this lease still owns it, so an
// expired lease cannot release a successor's claim.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const acquirePollInterval = 100 * time.Millisecond

// LockManager implements lock.Manager on Redis. Each lease is a SetNX key
// holding a random token with a fixed TTL.
type LockManager struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLockManager(client *redis.Client, ttl time.Duration) *LockManager {
	return &LockManager{client: client, ttl: ttl}
}

func (m *LockManager) Obtain(key string) lock.Lease {
	return &lease{
		client: m.client,
		key:    "lease:" + key,
		token:  uuid.NewString(),
		ttl:    m.ttl,
	}
}

type lease struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

func (l *lease) TryAcquire(ctx context.Context, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(acquirePollInterval):
		}
	}
}

func (l *lease) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}
