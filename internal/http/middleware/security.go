// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file hardens the response surface. The API serves payment and
// entitlement data to browser dashboards and server-side callers alike, so
// every response carries a conservative header baseline; the more invasive
// knobs (HSTS, no-store caching) stay opt-in because they depend on how the
// deployment terminates TLS and what sits in front of the service.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions selects which response-hardening headers are emitted.
//
// EnableHSTS must only be switched on when traffic is HTTPS end to end,
// including the proxy-to-app hop; the header is never written for plain-HTTP
// requests regardless. HSTSMaxAge falls back to 180 days when unset.
//
// NoStore adds Cache-Control: no-store (plus the legacy Pragma/Expires pair)
// for deployments that must keep order and entitlement payloads out of shared
// caches. EnablePolicy adds the browser feature policies; non-browser clients
// ignore them.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration
	NoStore      bool
	EnablePolicy bool
}

// SecurityHeaders returns a middleware that writes the response hardening
// headers before the handler runs.
//
// Always set: X-Content-Type-Options: nosniff, X-Frame-Options: DENY,
// Referrer-Policy: no-referrer. The frame denial matters here: checkout
// redirects must never be rendered inside someone else's iframe.
//
// With EnablePolicy, feature use is pinned shut (geolocation, microphone,
// camera, and the browser payment API, which this service does not use even
// though it sells things) and cross-domain policy files are refused.
//
// With EnableHSTS and an HTTPS request, Strict-Transport-Security is written
// with includeSubDomains and preload.
//
// When the response already carries an X-Request-ID, it is appended to
// Access-Control-Expose-Headers so browser callers can quote the id in
// support requests.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	return func(c *gin.Context) {
		h := c.Writer.Header()

		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security",
				"max-age="+strconv.Itoa(maxAge)+"; includeSubDomains; preload")
		}

		if rid := h.Get("X-Request-ID"); rid != "" {
			const hdr = "Access-Control-Expose-Headers"
			cur := h.Get(hdr)
			if cur == "" {
				h.Set(hdr, "X-Request-ID")
			} else if !strings.Contains(cur, "X-Request-ID") {
				h.Set(hdr, cur+", X-Request-ID")
			}
		}

		c.Next()
	}
}

// isHTTPS reports whether the request arrived over TLS, either directly or
// via a proxy that recorded X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
