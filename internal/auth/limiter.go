package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// LimiterConfig configures failed-login throttling.
type LimiterConfig struct {
	// AttemptsPerMinute is the refill rate of each client's bucket. Zero
	// disables throttling.
	AttemptsPerMinute int
	// Burst is how many failures a client may make in a row.
	Burst int
	// CleanupInterval is the time between sweeps of idle buckets.
	CleanupInterval time.Duration
}

// DefaultLimiterConfig allows a burst of 5 failures, refilled at 10 a
// minute.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		AttemptsPerMinute: 10,
		Burst:             5,
		CleanupInterval:   5 * time.Minute,
	}
}

// Limiter tracks failed logins per client with token buckets. Only
// failures consume tokens; a client with an empty bucket is refused
// without its password being checked.
type Limiter struct {
	config  LimiterConfig
	now     func() time.Time
	logger  *slog.Logger
	mu      sync.Mutex
	buckets map[string]*tokenBucket
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewLimiter creates a limiter. A nil logger disables cleanup logging.
func NewLimiter(config LimiterConfig, logger *slog.Logger) *Limiter {
	if config.Burst <= 0 {
		config.Burst = 5
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	return &Limiter{
		config:  config,
		now:     time.Now,
		logger:  logger,
		buckets: make(map[string]*tokenBucket),
	}
}

func (l *Limiter) enabled() bool {
	return l != nil && l.config.AttemptsPerMinute > 0
}

// refill brings b up to date. Callers hold l.mu.
func (l *Limiter) refill(b *tokenBucket) {
	now := l.now()
	elapsed := now.Sub(b.lastRefill)
	b.lastRefill = now
	b.tokens += elapsed.Seconds() * (float64(l.config.AttemptsPerMinute) / 60.0)
	if b.tokens > float64(l.config.Burst) {
		b.tokens = float64(l.config.Burst)
	}
}

// Blocked reports whether client has used up its failures, and if so how
// many seconds until it may try again.
func (l *Limiter) Blocked(client string) (bool, int) {
	if !l.enabled() {
		return false, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[client]
	if !ok {
		return false, 0
	}
	l.refill(b)
	if b.tokens >= 1.0 {
		return false, 0
	}
	needed := 1.0 - b.tokens
	return true, int(needed/(float64(l.config.AttemptsPerMinute)/60.0)) + 1
}

// Fail records a failed attempt by client.
func (l *Limiter) Fail(client string) {
	if !l.enabled() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[client]
	if !ok {
		b = &tokenBucket{tokens: float64(l.config.Burst), lastRefill: l.now()}
		l.buckets[client] = b
	}
	l.refill(b)
	if b.tokens >= 1.0 {
		b.tokens--
	} else {
		b.tokens = 0
	}
}

// Reset forgets client, typically after a successful login.
func (l *Limiter) Reset(client string) {
	if !l.enabled() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, client)
}

// StartCleanup sweeps idle buckets until ctx is done.
func (l *Limiter) StartCleanup(ctx context.Context) {
	if !l.enabled() {
		return
	}
	go func() {
		ticker := time.NewTicker(l.config.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.cleanup()
			}
		}
	}()
}

// cleanup drops buckets that have refilled completely.
func (l *Limiter) cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for client, b := range l.buckets {
		l.refill(b)
		if b.tokens >= float64(l.config.Burst) {
			delete(l.buckets, client)
			removed++
		}
	}
	if removed > 0 && l.logger != nil {
		l.logger.Debug("Auth limiter cleanup",
			"removed_buckets", removed,
			"remaining", len(l.buckets),
		)
	}
	return removed
}
