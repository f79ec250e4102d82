package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lease guards sweep execution so two sweeper instances never process the
// same recipients concurrently.
type Lease interface {
	// Acquire returns true when this instance holds the lease.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lease back. Releasing a lease held by another
	// instance is a no-op.
	Release(ctx context.Context) error
}

// leaseKey is the shared Redis key all sweeper instances compete on.
const leaseKey = "rollcall:sweep:lease"

// releaseScript deletes the lease only when this holder still owns it, so a
// slow sweep that outlived its TTL cannot release a successor's lease.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease implements Lease with a SET NX PX lease. The TTL bounds how
// long a crashed holder can block other instances.
type RedisLease struct {
	client *redis.Client
	ttl    time.Duration
	holder string
}

// NewRedisLease creates a RedisLease with a unique holder identity.
func NewRedisLease(client *redis.Client, ttl time.Duration) *RedisLease {
	return &RedisLease{
		client: client,
		ttl:    ttl,
		holder: uuid.NewString(),
	}
}

// Acquire attempts SET NX PX on the lease key.
func (l *RedisLease) Acquire(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, leaseKey, l.holder, l.ttl).Result()
}

// Release deletes the lease key if this instance still holds it.
func (l *RedisLease) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{leaseKey}, l.holder).Err()
}

// LocalLease implements Lease with an in-process mutex. It is the fallback
// when Redis is not configured; it only protects against overlapping sweeps
// within one process.
type LocalLease struct {
	mu sync.Mutex
}

// NewLocalLease creates a LocalLease.
func NewLocalLease() *LocalLease {
	return &LocalLease{}
}

// Acquire takes the lock without blocking.
func (l *LocalLease) Acquire(ctx context.Context) (bool, error) {
	return l.mu.TryLock(), nil
}

// Release gives the lock back.
func (l *LocalLease) Release(ctx context.Context) error {
	l.mu.Unlock()
	return nil
}
