package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newSecuredRouter(opt SecurityOptions, pre ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	for _, mw := range pre {
		r.Use(mw)
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/orders", func(c *gin.Context) { c.String(http.StatusOK, "[]") })
	return r
}

func getOrders(r *gin.Engine, mutate func(*http.Request)) http.Header {
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	r := newSecuredRouter(SecurityOptions{})

	h := getOrders(r, nil)
	if h.Get("X-Content-Type-Options") != "nosniff" ||
		h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %#v", h)
	}

	// None of the opt-in headers appear unless asked for.
	for _, hdr := range []string{
		"Permissions-Policy", "X-Permitted-Cross-Domain-Policies",
		"Cache-Control", "Pragma", "Expires", "Strict-Transport-Security",
	} {
		if h.Get(hdr) != "" {
			t.Fatalf("%s emitted without opting in: %q", hdr, h.Get(hdr))
		}
	}
}

func TestSecurityHeaders_ExposesRequestID(t *testing.T) {
	withRID := func(rid, expose string) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Header("X-Request-ID", rid)
			if expose != "" {
				c.Header("Access-Control-Expose-Headers", expose)
			}
			c.Next()
		}
	}

	h := getOrders(newSecuredRouter(SecurityOptions{}, withRID("rid-1", "")), nil)
	if got := h.Get("Access-Control-Expose-Headers"); got != "X-Request-ID" {
		t.Fatalf("expose header = %q, want X-Request-ID", got)
	}

	// An existing expose list is appended to, not clobbered.
	h = getOrders(newSecuredRouter(SecurityOptions{}, withRID("rid-2", "ETag")), nil)
	if got := h.Get("Access-Control-Expose-Headers"); got != "ETag, X-Request-ID" {
		t.Fatalf("expose header = %q, want 'ETag, X-Request-ID'", got)
	}

	// Already listed: left alone.
	h = getOrders(newSecuredRouter(SecurityOptions{}, withRID("rid-3", "X-Request-ID, ETag")), nil)
	if got := h.Get("Access-Control-Expose-Headers"); got != "X-Request-ID, ETag" {
		t.Fatalf("expose header = %q, want unchanged", got)
	}
}

func TestSecurityHeaders_PolicyAndNoStore(t *testing.T) {
	r := newSecuredRouter(SecurityOptions{NoStore: true, EnablePolicy: true})

	h := getOrders(r, nil)
	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("policy headers missing: %#v", h)
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("cache suppression headers missing: %#v", h)
	}
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	r := newSecuredRouter(SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour})

	// Plain HTTP: the header must never appear even when enabled.
	if h := getOrders(r, nil); h.Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS written for plain HTTP: %q", h.Get("Strict-Transport-Security"))
	}

	// Direct TLS.
	h := getOrders(r, func(req *http.Request) { req.TLS = &tls.ConnectionState{} })
	if got := h.Get("Strict-Transport-Security"); got != "max-age=86400; includeSubDomains; preload" {
		t.Fatalf("HSTS = %q", got)
	}

	// TLS terminated at the proxy.
	h = getOrders(r, func(req *http.Request) { req.Header.Set("X-Forwarded-Proto", "https") })
	if got := h.Get("Strict-Transport-Security"); !strings.HasPrefix(got, "max-age=") {
		t.Fatalf("HSTS behind proxy = %q", got)
	}
}

func TestSecurityHeaders_DefaultMaxAge(t *testing.T) {
	// Zero max-age falls back to 180 days.
	r := newSecuredRouter(SecurityOptions{EnableHSTS: true})

	h := getOrders(r, func(req *http.Request) { req.TLS = &tls.ConnectionState{} })
	if got := h.Get("Strict-Transport-Security"); !strings.HasPrefix(got, "max-age=15552000") {
		t.Fatalf("default HSTS = %q, want 180-day max-age", got)
	}
}

func Test_isHTTPS(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	if isHTTPS(plain) {
		t.Fatal("plain HTTP reported as https")
	}

	direct := httptest.NewRequest(http.MethodGet, "/", nil)
	direct.TLS = &tls.ConnectionState{}
	if !isHTTPS(direct) {
		t.Fatal("TLS request not reported as https")
	}

	proxied := httptest.NewRequest(http.MethodGet, "/", nil)
	proxied.Header.Set("X-Forwarded-Proto", "HTTPS")
	if !isHTTPS(proxied) {
		t.Fatal("X-Forwarded-Proto not honored case-insensitively")
	}
}
