package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veltix/go-access-backend/internal/config"
)

func newLimitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(rl.Handler())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func doGet(r *gin.Engine, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_CapacityThenDeny(t *testing.T) {
	// Full bucket admits exactly capacity immediate requests, then 429s.
	rl := NewRateLimiterFromConfig(config.RateConfig{Capacity: 3, Interval: time.Hour}, KeyGlobal("test"))
	r := newLimitedRouter(rl)

	for i := 0; i < 3; i++ {
		if w := doGet(r, nil); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}
	w := doGet(r, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("request 4: status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("429 must carry Retry-After")
	}
}

func TestRateLimiter_RefillAfterInterval(t *testing.T) {
	rl := NewRateLimiterFromConfig(config.RateConfig{Capacity: 1, Interval: 50 * time.Millisecond}, KeyGlobal("refill"))
	r := newLimitedRouter(rl)

	if w := doGet(r, nil); w.Code != http.StatusOK {
		t.Fatalf("first request: %d", w.Code)
	}
	if w := doGet(r, nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("drained bucket should deny, got %d", w.Code)
	}

	time.Sleep(60 * time.Millisecond)
	if w := doGet(r, nil); w.Code != http.StatusOK {
		t.Fatalf("after refill interval: %d", w.Code)
	}
}

func TestRateLimiter_IndependentKeys(t *testing.T) {
	rl := NewRateLimiterFromConfig(config.RateConfig{Capacity: 1, Interval: time.Hour}, KeyByClient())
	r := newLimitedRouter(rl)

	a := map[string]string{"X-Forwarded-For": "203.0.113.7"}
	b := map[string]string{"X-Forwarded-For": "203.0.113.8"}

	if w := doGet(r, a); w.Code != http.StatusOK {
		t.Fatalf("client a: %d", w.Code)
	}
	if w := doGet(r, b); w.Code != http.StatusOK {
		t.Fatalf("client b must have its own bucket: %d", w.Code)
	}
	if w := doGet(r, a); w.Code != http.StatusTooManyRequests {
		t.Fatalf("client a second request: %d, want 429", w.Code)
	}
}

func TestClientKey_HeaderDerivation(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		hdr  map[string]string
		want string
	}{
		{"forwarded first entry", map[string]string{"X-Forwarded-For": " 203.0.113.7 , 10.0.0.1"}, "203.0.113.7"},
		{"forwarded single", map[string]string{"X-Forwarded-For": "198.51.100.2"}, "198.51.100.2"},
		{"real ip fallback", map[string]string{"X-Real-IP": " 192.0.2.9 "}, "192.0.2.9"},
		{"forwarded wins over real ip", map[string]string{"X-Forwarded-For": "203.0.113.7", "X-Real-IP": "192.0.2.9"}, "203.0.113.7"},
		{"nothing identifies the client", nil, "unknown"},
		{"blank forwarded falls through", map[string]string{"X-Forwarded-For": "  ,10.0.0.1"}, "unknown"},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		for k, v := range tc.hdr {
			c.Request.Header.Set(k, v)
		}
		if got := ClientKey(c); got != tc.want {
			t.Fatalf("%s: ClientKey = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestKeyByUserOrClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	keyFn := KeyByUserOrClient()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set("userID", "u1")
	if got := keyFn(c); got != "user:u1" {
		t.Fatalf("authenticated key = %q", got)
	}

	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	c2.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c2.Request.Header.Set("X-Real-IP", "192.0.2.9")
	if got := keyFn(c2); got != "ip:192.0.2.9" {
		t.Fatalf("anonymous key = %q", got)
	}
}

func TestRateLimiter_ReplayBypass(t *testing.T) {
	rl := NewRateLimiterFromConfig(config.RateConfig{Capacity: 1, Interval: time.Hour}, KeyGlobal("bypass"))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	// Simulate IdempotencyValidator marking every request as a replay.
	r.Use(func(c *gin.Context) { c.Set(ctxKeyRateBypass, true); c.Next() })
	r.Use(rl.Handler())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for i := 0; i < 5; i++ {
		if w := doGet(r, nil); w.Code != http.StatusOK {
			t.Fatalf("replayed request %d limited: %d", i+1, w.Code)
		}
	}
}
