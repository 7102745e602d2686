package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const aiQuotaWindow = time.Hour

// quotaStore is the subset of *redis.Client backing aiQuota.
type quotaStore interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	ExpireNX(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// aiQuota counts AI calls per profile in fixed clock-hour windows.
type aiQuota struct {
	kv    quotaStore
	limit int
	now   func() time.Time
}

// newAIQuota returns nil when kv is nil or limit is not positive, which disables the check.
func newAIQuota(kv quotaStore, limit int) *aiQuota {
	if kv == nil || limit <= 0 {
		return nil
	}
	return &aiQuota{kv: kv, limit: limit, now: time.Now}
}

func (q *aiQuota) key(profileID uint) string {
	return fmt.Sprintf("ai_rate:%d:%s", profileID, q.now().UTC().Format("2006010215"))
}

// take spends one call of the profile's hourly budget and reports how many remain.
// ok is false once the budget is exhausted.
func (q *aiQuota) take(ctx context.Context, profileID uint) (remaining int, ok bool, err error) {
	key := q.key(profileID)
	used, err := q.kv.Incr(ctx, key).Result()
	if err != nil {
		return 0, false, fmt.Errorf("increment %s: %w", key, err)
	}
	// the window key lives a little longer than the hour it counts
	if err := q.kv.ExpireNX(ctx, key, aiQuotaWindow+time.Minute).Err(); err != nil {
		return 0, false, fmt.Errorf("expire %s: %w", key, err)
	}
	left := q.limit - int(used)
	if left < 0 {
		return 0, false, nil
	}
	return left, true, nil
}
