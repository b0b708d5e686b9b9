package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Allow(t *testing.T) {
	l := New(3)

	for i := 0; i < 3; i++ {
		ok, wait := l.Allow("a")
		require.True(t, ok, "request %d", i)
		assert.Zero(t, wait)
	}

	ok, wait := l.Allow("a")
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, 20*time.Second)

	ok, _ = l.Allow("b")
	assert.True(t, ok, "clients have independent budgets")
}

func TestLimiter_RejectedRequestsDoNotConsumeBudget(t *testing.T) {
	l := New(1)

	ok, _ := l.Allow("a")
	require.True(t, ok)

	_, first := l.Allow("a")
	_, second := l.Allow("a")
	// A cancelled reservation leaves the wait unchanged, apart from elapsed time.
	assert.InDelta(t, first.Seconds(), second.Seconds(), 1)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(New(1), func(c *gin.Context) string { return c.GetHeader("X-Client") }))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	call := func(client string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Client", client)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, call("a").Code)

	w := call("a")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"error":"rate_limit_exceeded"`)
	assert.Contains(t, w.Body.String(), `"retry_after":60`)

	assert.Equal(t, http.StatusNoContent, call("b").Code)
}

// fakeClock is a settable time source for eviction tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestLimiter_EvictIdle(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(100)
	l.now = clock.Now

	for i := 0; i < 5000; i++ {
		l.Allow(fmt.Sprintf("ip:10.0.%d.%d", i/256, i%256))
	}
	require.Equal(t, 5000, l.Len())

	clock.Advance(DefaultIdleTTL / 2)
	l.Allow("ip:10.0.0.0")
	assert.Zero(t, l.EvictIdle(), "nothing is idle yet")

	clock.Advance(DefaultIdleTTL/2 + time.Second)
	assert.Equal(t, 4999, l.EvictIdle())
	assert.Equal(t, 1, l.Len(), "recently seen client is kept")

	clock.Advance(DefaultIdleTTL + time.Second)
	assert.Equal(t, 1, l.EvictIdle())
	assert.Zero(t, l.Len())
}

func TestLimiter_RunEvictsUntilCancelled(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(100)
	l.now = clock.Now

	l.Allow("a")
	l.Allow("b")
	clock.Advance(DefaultIdleTTL + time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return l.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
