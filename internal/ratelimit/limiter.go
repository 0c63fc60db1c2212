// Package ratelimit caps how often a single user may trigger paragraph generation.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/vytor/lingorun/internal/logger"
	"github.com/vytor/lingorun/internal/ttlstore"
)

const (
	hourlyKeyPrefix = "ratelimit:hourly:"
	dailyKeyPrefix  = "ratelimit:daily:"

	DefaultHourlyLimit = 100
	DefaultDailyLimit  = 50
)

// Limits holds the per-window generation allowance.
type Limits struct {
	Hourly int
	Daily  int
}

// DefaultLimits returns the stock allowance.
func DefaultLimits() Limits {
	return Limits{Hourly: DefaultHourlyLimit, Daily: DefaultDailyLimit}
}

// WindowUsage describes one counter window.
type WindowUsage struct {
	Used           int   `json:"used"`
	Limit          int   `json:"limit"`
	SecondsToReset int64 `json:"seconds_to_reset"`
}

// Reached reports whether the window is exhausted.
func (w WindowUsage) Reached() bool {
	return w.Used >= w.Limit
}

// Usage is a snapshot of a user's generation counters.
type Usage struct {
	Hourly        WindowUsage `json:"hourly"`
	Daily         WindowUsage `json:"daily"`
	IsRateLimited bool        `json:"is_rate_limited"`
}

// Limiter keeps an hourly and a daily fixed-window counter per user in a ttlstore.Store.
type Limiter struct {
	store  ttlstore.Store
	limits Limits
	now    func() time.Time
}

// NewLimiter creates a Limiter. A nil clock uses time.Now.
func NewLimiter(store ttlstore.Store, limits Limits, clock func() time.Time) *Limiter {
	if clock == nil {
		clock = time.Now
	}
	return &Limiter{store: store, limits: limits, now: clock}
}

func (l *Limiter) hourlyKey(userID int64) string {
	hour := l.now().Unix() / int64(time.Hour/time.Second)
	return hourlyKeyPrefix + strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(hour, 10)
}

func (l *Limiter) dailyKey(userID int64) string {
	day := l.now().Unix() / int64(24*time.Hour/time.Second)
	return dailyKeyPrefix + strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(day, 10)
}

func (l *Limiter) count(ctx context.Context, key string) (int, error) {
	v, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read counter %s: %w", key, err)
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse counter %s: %w", key, err)
	}
	return n, nil
}

// CanGenerate reports whether both of the user's windows are below their limits.
func (l *Limiter) CanGenerate(ctx context.Context, userID int64) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("ratelimit").WithField("user_id", userID)

	hourly, err := l.count(ctx, l.hourlyKey(userID))
	if err != nil {
		return false, err
	}
	daily, err := l.count(ctx, l.dailyKey(userID))
	if err != nil {
		return false, err
	}

	allowed := true
	if hourly >= l.limits.Hourly {
		log.Warn("hourly generation limit exceeded (%d/%d)", hourly, l.limits.Hourly)
		allowed = false
	}
	if daily >= l.limits.Daily {
		log.Warn("daily generation limit exceeded (%d/%d)", daily, l.limits.Daily)
		allowed = false
	}
	return allowed, nil
}

// Record counts one generation against both windows. Each counter's expiry is
// set by whichever request opens its window.
func (l *Limiter) Record(ctx context.Context, userID int64) error {
	if _, err := l.store.Increment(ctx, l.hourlyKey(userID), time.Hour); err != nil {
		return fmt.Errorf("record hourly generation: %w", err)
	}
	if _, err := l.store.Increment(ctx, l.dailyKey(userID), 24*time.Hour); err != nil {
		return fmt.Errorf("record daily generation: %w", err)
	}
	logger.FromContext(ctx).Debug("recorded generation for user %d", userID)
	return nil
}

// Usage reports used/limit/reset for both windows.
func (l *Limiter) Usage(ctx context.Context, userID int64) (Usage, error) {
	hourly, err := l.window(ctx, l.hourlyKey(userID), l.limits.Hourly)
	if err != nil {
		return Usage{}, err
	}
	daily, err := l.window(ctx, l.dailyKey(userID), l.limits.Daily)
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		Hourly:        hourly,
		Daily:         daily,
		IsRateLimited: hourly.Reached() || daily.Reached(),
	}, nil
}

func (l *Limiter) window(ctx context.Context, key string, limit int) (WindowUsage, error) {
	used, err := l.count(ctx, key)
	if err != nil {
		return WindowUsage{}, err
	}
	ttl, err := l.store.TTL(ctx, key)
	if err != nil {
		return WindowUsage{}, fmt.Errorf("read ttl %s: %w", key, err)
	}
	return WindowUsage{Used: used, Limit: limit, SecondsToReset: int64(ttl / time.Second)}, nil
}

// Reset clears the user's current counters.
func (l *Limiter) Reset(ctx context.Context, userID int64) error {
	if err := l.store.Delete(ctx, l.hourlyKey(userID), l.dailyKey(userID)); err != nil {
		return fmt.Errorf("reset limits: %w", err)
	}
	logger.FromContext(ctx).Info("reset generation limits for user %d", userID)
	return nil
}
