package auth

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// RateAction names a login-adjacent flow with its own quota.
type RateAction string

const (
	ActionLogin    RateAction = "login"
	ActionRegister RateAction = "register"
	ActionReset    RateAction = "reset"
	ActionVerify   RateAction = "verify"
	ActionGeneral  RateAction = "general"
)

// RatePolicy is a quota ceiling refilled continuously over the window.
type RatePolicy struct {
	Ceiling int
	Window  time.Duration
}

// DefaultRatePolicies mirrors the deployed per-action budgets. Unknown
// actions fall back to the general policy.
func DefaultRatePolicies() map[RateAction]RatePolicy {
	return map[RateAction]RatePolicy{
		ActionLogin:    {Ceiling: 5, Window: 15 * time.Minute},
		ActionRegister: {Ceiling: 20, Window: time.Hour},
		ActionReset:    {Ceiling: 3, Window: time.Hour},
		ActionVerify:   {Ceiling: 5, Window: time.Hour},
		ActionGeneral:  {Ceiling: 100, Window: time.Minute},
	}
}

const (
	// rateBucketCapacity bounds distinct (client, action) buckets held at once.
	rateBucketCapacity = 10_000
	// rateBucketTTL evicts buckets idle for this long. The cache expires
	// entries a fixed TTL after their last write, so bucketFor re-adds on
	// every hit to keep active buckets from aging out and coming back full.
	rateBucketTTL = 2 * time.Hour
)

// RateLimiter enforces per-(client, action) token buckets. Refill is
// continuous rather than fixed-window, so a burst-then-wait attacker gets no
// free quota at window boundaries. Buckets live in a bounded, self-expiring
// cache to stay memory-bounded under high client cardinality.
type RateLimiter struct {
	mu       sync.Mutex
	policies map[RateAction]RatePolicy
	buckets  *expirable.LRU[string, *rateBucket]
	now      func() time.Time
}

type rateBucket struct {
	mu     sync.Mutex
	tokens float64
	policy RatePolicy
	last   time.Time
}

// NewRateLimiter creates a limiter with the given policies; nil means the
// default budgets.
func NewRateLimiter(policies map[RateAction]RatePolicy) *RateLimiter {
	if policies == nil {
		policies = DefaultRatePolicies()
	}
	if _, ok := policies[ActionGeneral]; !ok {
		policies[ActionGeneral] = DefaultRatePolicies()[ActionGeneral]
	}

	return &RateLimiter{
		policies: policies,
		buckets:  expirable.NewLRU[string, *rateBucket](rateBucketCapacity, nil, rateBucketTTL),
		now:      time.Now,
	}
}

// TryConsume spends one unit of quota for the client and action. Concurrent
// callers on the same key never overspend the ceiling; which caller wins at
// the boundary is unspecified.
func (rl *RateLimiter) TryConsume(clientKey string, action RateAction) bool {
	bucket := rl.bucketFor(clientKey, action)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	bucket.refill(rl.now())
	if bucket.tokens < 1 {
		return false
	}
	bucket.tokens--
	return true
}

// Remaining reports the quota currently left for the client and action,
// within refill granularity.
func (rl *RateLimiter) Remaining(clientKey string, action RateAction) int {
	bucket := rl.bucketFor(clientKey, action)

	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	bucket.refill(rl.now())
	return int(bucket.tokens)
}

func (rl *RateLimiter) bucketFor(clientKey string, action RateAction) *rateBucket {
	policy, ok := rl.policies[action]
	if !ok {
		action = ActionGeneral
		policy = rl.policies[ActionGeneral]
	}

	key := string(action) + ":" + clientKey

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if bucket, ok := rl.buckets.Get(key); ok {
		// restart the idle clock, expiry is tracked per write
		rl.buckets.Add(key, bucket)
		return bucket
	}

	bucket := &rateBucket{
		tokens: float64(policy.Ceiling),
		policy: policy,
		last:   rl.now(),
	}
	rl.buckets.Add(key, bucket)
	return bucket
}

// refill tops the bucket up for elapsed time. Quota never exceeds the ceiling.
func (b *rateBucket) refill(now time.Time) {
	elapsed := now.Sub(b.last)
	if elapsed <= 0 {
		return
	}
	b.last = now

	rate := float64(b.policy.Ceiling) / b.policy.Window.Seconds()
	b.tokens += elapsed.Seconds() * rate
	if max := float64(b.policy.Ceiling); b.tokens > max {
		b.tokens = max
	}
}

// ClientKey derives the rate limit key for a request from its forwarded-for
// chain (first hop), the real-IP header, then the transport peer address, in
// that priority order, since proxies may rewrite the later ones.
func ClientKey(forwardedFor, realIP, peerAddr string) string {
	if forwardedFor != "" {
		first := forwardedFor
		if idx := strings.IndexByte(forwardedFor, ','); idx >= 0 {
			first = forwardedFor[:idx]
		}
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if realIP = strings.TrimSpace(realIP); realIP != "" {
		return realIP
	}

	return peerAddr
}
