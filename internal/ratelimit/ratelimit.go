package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/PratikDhanave/event-inbox-service/internal/metrics"
	"github.com/PratikDhanave/event-inbox-service/internal/models"
)

// DefaultIdleTTL is how long a client bucket survives without requests.
const DefaultIdleTTL = 3 * time.Minute

// Limiter hands out one token bucket per client key.
type Limiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
	clients map[string]*client
}

// client tracks a bucket and the last time its owner made a request.
type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New allows perMinute sustained requests per client with an equal burst.
// Buckets idle for longer than DefaultIdleTTL are dropped by Run.
func New(perMinute int) *Limiter {
	return &Limiter{
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   perMinute,
		idleTTL: DefaultIdleTTL,
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

// Allow reports whether the client may proceed and, if not, how long until it may retry.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	now := l.now()
	cl, ok := l.clients[key]
	if !ok {
		cl = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = cl
	}
	cl.lastSeen = now
	lim := cl.limiter
	l.mu.Unlock()

	r := lim.Reserve()
	if !r.OK() {
		return false, time.Minute
	}
	if d := r.Delay(); d > 0 {
		r.Cancel()
		return false, d
	}
	return true, 0
}

// Len is the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// EvictIdle removes clients not seen within the idle TTL and returns how many were dropped.
// A dropped client starts again with a full bucket, which is what it would have refilled to anyway.
func (l *Limiter) EvictIdle() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	evicted := 0
	for key, cl := range l.clients {
		if now.Sub(cl.lastSeen) > l.idleTTL {
			delete(l.clients, key)
			evicted++
		}
	}
	return evicted
}

// Run calls EvictIdle every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.EvictIdle()
		}
	}
}

// Middleware rejects clients over their budget with 429. keyFn names the client.
func Middleware(l *Limiter, keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retryAfter := l.Allow(keyFn(c))
		if !ok {
			metrics.RateLimitHits.Inc()
			secs := int(math.Ceil(retryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error:   "rate_limit_exceeded",
				Message: "Rate limit exceeded",
				Details: map[string]interface{}{"retry_after": secs},
			})
			return
		}
		c.Next()
	}
}
