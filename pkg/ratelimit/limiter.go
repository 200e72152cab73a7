// Package ratelimit implements the distributed sliding-window quota gating
// outbound WhatsApp traffic.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ahmmed-fouad/real-estate-agent/pkg/config"
)

// window is one sliding window: an ordered set of event timestamps under
// whatsapp:ratelimit:{id}:{name}, scored by epoch-milliseconds.
type window struct {
	name     string
	duration time.Duration
	limit    int
}

// Result is the outcome of a limit check. The most restrictive failing
// window decides Allowed; Remaining and ResetIn describe that window.
type Result struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

// Limiter enforces three independent sliding windows per identifier.
//
// Failure semantics are deliberate: infrastructure errors fail OPEN. A rate
// limiter outage must not block all outbound traffic; every allow-on-error is
// logged at error level.
type Limiter struct {
	rdb     *redis.Client
	windows [3]window
	logger  *slog.Logger
	now     func() time.Time
}

// NewLimiter builds a limiter with the configured ceilings.
func NewLimiter(rdb *redis.Client, cfg *config.RateLimitConfig) *Limiter {
	return &Limiter{
		rdb: rdb,
		windows: [3]window{
			{name: "1s", duration: time.Second, limit: cfg.PerSecond},
			{name: "1m", duration: time.Minute, limit: cfg.PerMinute},
			{name: "1h", duration: time.Hour, limit: cfg.PerHour},
		},
		logger: slog.Default().With("component", "rate-limiter"),
		now:    time.Now,
	}
}

func (l *Limiter) key(id, name string) string {
	return fmt.Sprintf("whatsapp:ratelimit:%s:%s", id, name)
}

// CheckLimit evicts expired entries from each window and reports whether a
// send is currently allowed for the identifier.
func (l *Limiter) CheckLimit(ctx context.Context, id string) Result {
	now := l.now()

	worst := Result{Allowed: true, Remaining: -1}
	for _, w := range l.windows {
		key := l.key(id, w.name)
		cutoff := now.Add(-w.duration).UnixMilli()

		pipe := l.rdb.TxPipeline()
		pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff))
		card := pipe.ZCard(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			l.logger.Error("Rate limit check failed, allowing send (fail-open)",
				"id", id, "window", w.name, "error", err)
			return Result{Allowed: true, Remaining: -1, Limit: w.limit}
		}

		count := int(card.Val())
		remaining := w.limit - count
		if remaining < 0 {
			remaining = 0
		}

		if count >= w.limit {
			resetIn := l.resetIn(ctx, key, w, now)
			return Result{Allowed: false, Remaining: 0, ResetIn: resetIn, Limit: w.limit}
		}
		if worst.Remaining < 0 || remaining < worst.Remaining {
			worst = Result{Allowed: true, Remaining: remaining, Limit: w.limit}
		}
	}
	return worst
}

// resetIn derives how long until the oldest entry leaves the window.
func (l *Limiter) resetIn(ctx context.Context, key string, w window, now time.Time) time.Duration {
	oldest, err := l.rdb.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil || len(oldest) == 0 {
		return w.duration
	}
	expiry := time.UnixMilli(int64(oldest[0].Score)).Add(w.duration)
	if d := expiry.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Increment records one send in every window and refreshes a just-over-window
// TTL so abandoned identifiers expire on their own. Infrastructure errors are
// logged and swallowed (the send already happened).
func (l *Limiter) Increment(ctx context.Context, id string) {
	now := l.now()

	pipe := l.rdb.TxPipeline()
	for _, w := range l.windows {
		key := l.key(id, w.name)
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(now.UnixMilli()),
			Member: uuid.NewString(),
		})
		pipe.Expire(ctx, key, w.duration+time.Second)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Error("Rate limit increment failed", "id", id, "error", err)
	}
}
