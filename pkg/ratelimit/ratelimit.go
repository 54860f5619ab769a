// Package ratelimit implements the token-bucket rate limiting used by the
// MCP server: a global bucket per operation class and a per-client bucket,
// both of which must admit a request before it is dispatched.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/swissarmyhammer/swissarmyhammer/internal/config"
	"github.com/swissarmyhammer/swissarmyhammer/internal/logger"
	"github.com/swissarmyhammer/swissarmyhammer/internal/swerr"
)

var log = logger.New("ratelimit:limiter")

// Operation names that are charged against the expensive-operation bucket
// instead of the default global bucket.
const (
	OperationSearch       = "search"
	OperationWorkflowRun  = "workflow_run"
	OperationComplexQuery = "complex_query"
)

// Config holds the three bucket classes described in spec §4.10, all
// expressed as requests-per-window.
type Config struct {
	GlobalPerOperation int
	PerClient          int
	Expensive          int
	Window             time.Duration
}

// DefaultConfig returns the spec's documented defaults, overridable via
// SWISSARMYHAMMER_RATE_LIMIT_* environment variables.
func DefaultConfig() Config {
	l := config.NewLoader("SWISSARMYHAMMER_RATE_LIMIT")
	return Config{
		GlobalPerOperation: l.Int("GLOBAL", 100),
		PerClient:          l.Int("PER_CLIENT", 10),
		Expensive:          l.Int("EXPENSIVE", 5),
		Window:             l.Duration("WINDOW", time.Minute),
	}
}

func isExpensive(operation string) bool {
	switch operation {
	case OperationSearch, OperationWorkflowRun, OperationComplexQuery:
		return true
	default:
		return false
	}
}

// tokenBucket is a continuous-refill token bucket guarded by its own mutex.
type tokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	lastTouch  time.Time // for stale-bucket pruning
}

func newTokenBucket(capacity int, window time.Duration) *tokenBucket {
	now := time.Now()
	return &tokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: float64(capacity) / window.Seconds(),
		lastRefill: now,
		lastTouch:  now,
	}
}

func (b *tokenBucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// tryConsume attempts to take n tokens, returning (admitted, timeUntilNextToken).
func (b *tokenBucket) tryConsume(n float64) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.refillLocked(now)
	b.lastTouch = now

	if b.tokens >= n {
		b.tokens -= n
		return true, 0
	}
	if b.refillRate <= 0 {
		return false, time.Hour
	}
	return false, time.Duration((n - b.tokens) / b.refillRate * float64(time.Second))
}

func (b *tokenBucket) idleSince(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Sub(b.lastTouch)
}

// refund returns n tokens to the bucket, capped at capacity. Used to undo a
// tryConsume when a later check in the same admission decision rejects the
// request, so one bucket's rejection never drains another's tokens.
func (b *tokenBucket) refund(n float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens += n
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
}

// Limiter admits or rejects requests against the global-per-operation and
// per-client buckets. Zero value is not usable; construct with New.
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	global  map[string]*tokenBucket // keyed "global:<operation>"
	clients map[string]*tokenBucket // keyed "client:<id>"
}

// New constructs a Limiter with the given configuration.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:     cfg,
		global:  make(map[string]*tokenBucket),
		clients: make(map[string]*tokenBucket),
	}
}

// Allow checks both the global bucket for operation and the per-client
// bucket for clientID, consuming cost tokens from each only if both admit.
// It returns a *swerr.Error of KindActionRateLimit (with RetryAfterMillis
// populated) when either bucket rejects the request.
func (l *Limiter) Allow(clientID, operation string, cost int) error {
	if cost <= 0 {
		cost = 1
	}
	n := float64(cost)

	globalBucket := l.bucketFor(l.global, "global:"+operation, l.operationLimit(operation))
	if ok, wait := globalBucket.tryConsume(n); !ok {
		log.Printf("global rate limit exceeded for %s, retry after %s", operation, wait)
		return rateLimitError(fmt.Sprintf("global rate limit exceeded for operation %q", operation), wait)
	}

	clientBucket := l.bucketFor(l.clients, "client:"+clientID, l.cfg.PerClient)
	if ok, wait := clientBucket.tryConsume(n); !ok {
		globalBucket.refund(n)
		log.Printf("per-client rate limit exceeded for %s, retry after %s", clientID, wait)
		return rateLimitError(fmt.Sprintf("client rate limit exceeded for %q", clientID), wait)
	}

	return nil
}

func rateLimitError(message string, wait time.Duration) error {
	e := swerr.Newf(swerr.KindActionRateLimit, "%s. Retry after %dms", message, wait.Milliseconds())
	e.RetryAfterMillis = wait.Milliseconds()
	return e
}

func (l *Limiter) operationLimit(operation string) int {
	if isExpensive(operation) {
		return l.cfg.Expensive
	}
	return l.cfg.GlobalPerOperation
}

func (l *Limiter) bucketFor(set map[string]*tokenBucket, key string, capacity int) *tokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := set[key]
	if !ok {
		b = newTokenBucket(capacity, l.cfg.Window)
		set[key] = b
	}
	return b
}

// PruneStaleClients removes per-client buckets that have not been touched
// in more than 2x the configured window, bounding memory growth from
// transient client identifiers.
func (l *Limiter) PruneStaleClients() int {
	threshold := 2 * l.cfg.Window
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	pruned := 0
	for key, bucket := range l.clients {
		if bucket.idleSince(now) > threshold {
			delete(l.clients, key)
			pruned++
		}
	}
	if pruned > 0 {
		log.Printf("pruned %d stale client buckets", pruned)
	}
	return pruned
}
