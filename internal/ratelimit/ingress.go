package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/medsera/returns/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyCourierWebhook = "returns:webhook:courier:%s"

// IngressLimiter throttles courier webhook traffic per courier and
// serializes refund initiation per order. When disabled it is nil and
// every check passes.
type IngressLimiter struct {
	enabled bool

	bucket *TokenBucket
	lock   *RefundLock

	courierRate  float64
	courierBurst int
}

func NewIngressLimiter(cfg config.Config) (*IngressLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.CourierRate <= 0 || limitCfg.CourierBurst <= 0 {
		return nil, errors.New("courier webhook rate limit must be positive")
	}
	if limitCfg.RefundLockTTLSeconds <= 0 {
		return nil, errors.New("refund lock ttl must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	return &IngressLimiter{
		enabled:      true,
		bucket:       NewTokenBucket(client),
		lock:         NewRefundLock(client, time.Duration(limitCfg.RefundLockTTLSeconds)*time.Second),
		courierRate:  limitCfg.CourierRate,
		courierBurst: limitCfg.CourierBurst,
	}, nil
}

func (l *IngressLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *IngressLimiter) AllowCourier(ctx context.Context, courier string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyCourierWebhook, strings.TrimSpace(courier)), l.courierRate, l.courierBurst)
}

func (l *IngressLimiter) TryLockRefund(ctx context.Context, orderID string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	return l.lock.Acquire(ctx, orderID)
}

func (l *IngressLimiter) ReleaseRefund(ctx context.Context, orderID, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.lock.Release(ctx, orderID, token)
}
