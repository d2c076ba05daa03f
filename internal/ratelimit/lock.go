package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// refundUnlockScript deletes the lock only when the caller still holds it,
// so a refund that outlived its TTL cannot release the lock a later refund
// acquired.
const refundUnlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const refundLockKey = "returns:refund:lock:%s"

// RefundLock serializes refund initiation per order. Only one refund may
// run against an order at a time; the TTL bounds how long a crashed holder
// can keep the order blocked.
type RefundLock struct {
	client *redis.Client
	script *redis.Script
	ttl    time.Duration
}

func NewRefundLock(client *redis.Client, ttl time.Duration) *RefundLock {
	if client == nil {
		return nil
	}
	return &RefundLock{
		client: client,
		script: redis.NewScript(refundUnlockScript),
		ttl:    ttl,
	}
}

// Acquire takes the per-order lock. The returned token must be passed back
// to Release; false without error means another refund holds the order.
func (l *RefundLock) Acquire(ctx context.Context, orderID string) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("refund lock client not configured")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return "", false, errors.New("refund lock order id is empty")
	}
	if l.ttl <= 0 {
		return "", false, errors.New("refund lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, fmt.Sprintf(refundLockKey, orderID), token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *RefundLock) Release(ctx context.Context, orderID, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{fmt.Sprintf(refundLockKey, orderID)}, token).Err()
}
