package locking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fitstack/recurrence/internal/domain"
	"github.com/fitstack/recurrence/pkg/logger"
)

// releaseScript deletes the lease only when the caller still owns it
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// RedisLocker implements MasterLocker with a SET NX PX lease per master.
// The TTL bounds how long a crashed holder can block other operations.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// DefaultLeaseTTL bounds one extension or reconciliation run
const DefaultLeaseTTL = 2 * time.Minute

// NewRedisLocker creates a redis-backed master locker
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		log:    logger.Get(),
	}
}

// Acquire takes the per-master lease
func (l *RedisLocker) Acquire(ctx context.Context, tenantID, masterID uuid.UUID) (func(), error) {
	key := lockKey(tenantID, masterID)
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire master lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrMasterLocked
	}

	release := func() {
		// Release is best effort; the TTL reclaims an orphaned lease
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
			l.log.Warn(fmt.Sprintf("Failed to release master lock %s: %v", key, err))
		}
	}
	return release, nil
}

// lockKey builds the lease key for one master event
func lockKey(tenantID, masterID uuid.UUID) string {
	return fmt.Sprintf("recurrence:lock:%s:%s", tenantID, masterID)
}

// Ensure RedisLocker implements MasterLocker
var _ MasterLocker = (*RedisLocker)(nil)
