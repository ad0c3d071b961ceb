// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file covers request correlation and the logging/recovery pair around
// it. Settlement problems are debugged almost exclusively from logs (the
// interesting races involve a webhook, a sweep, and a status poll hitting the
// same order), so every request gets a correlation id and a request-scoped
// logger that carries it:
//
//   - RequestID() reuses or mints an X-Request-ID and stores it in the Gin
//     context.
//   - Logger() emits one structured access line per request and parks a
//     zerolog.Logger in the context for downstream code.
//   - Recovery() turns panics into the standard JSON 500 envelope without
//     losing the correlation id.
//   - LoggerFrom() hands the request-scoped logger to handlers and services,
//     which tag their own lines (order_id, user_id) on top of it.
//
// Compose as RequestID, then Logger (or RedactingLogger), then Recovery, so a
// panic is logged with the id the client was told. Query strings are capped
// before logging. The logger lives under the "logger" context key.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// requestIDKey is the Gin context key holding the correlation id.
	requestIDKey = "requestID"
	// requestIDHeader propagates the correlation id in both directions.
	requestIDHeader = "X-Request-ID"
	// maxQueryLogLength caps how much of a raw query string is logged.
	maxQueryLogLength = 2048
)

// RequestID attaches a correlation identifier to every request. An inbound
// X-Request-ID is trusted and reused (payment providers and internal cron
// callers pass their own); otherwise a fresh UUIDv4 is minted. The id is
// echoed on the response and stored under the "requestID" context key.
//
// Mount this first: everything downstream, including error envelopes, quotes
// the id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger writes one structured access-log line per request and stores a
// request-scoped zerolog.Logger under the "logger" context key.
//
// The line carries method, route (falling back to the raw path on 404s),
// client ip, user agent, referer, capped query, correlation and user ids,
// and after the handler runs: status, latency, and byte counts. Level tracks
// outcome: error for 5xx or collected Gin errors, warn for 4xx, info
// otherwise. A deny from the entitlement guard is a warn, not noise at
// error level.
//
// Mount after RequestID so the line carries the correlation id.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid, _ := c.Get(requestIDKey)
		uid, _ := c.Get("userID")
		path := c.FullPath()
		if path == "" {
			// Unmatched route: no template to report.
			path = c.Request.URL.Path
		}

		l := log.With().
			Str("request_id", asString(rid)).
			Str("user_id", asString(uid)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("remote_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Str("referer", c.Request.Referer()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			// -1 when the client did not declare a length.
			Int64("bytes_in", c.Request.ContentLength).
			Logger()

		c.Set("logger", &l)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		bytesOut := c.Writer.Size()

		ev := l.With().
			Int("status", status).
			Dur("latency", latency).
			Int("bytes_out", bytesOut).
			Logger()

		switch {
		case len(c.Errors) > 0:
			ev.Error().Str("errors", c.Errors.String()).Msg("request")
		case status >= 500:
			ev.Error().Msg("request")
		case status >= 400:
			ev.Warn().Msg("request")
		default:
			ev.Info().Msg("request")
		}
	}
}

// Recovery intercepts panics, logs the stack with the correlation id, and
// answers with the standard JSON error envelope:
//
//	{ "request_id": "...", "code": "internal_error", "message": "internal server error" }
//
// When the handler already wrote part of a response, only the status is
// forced to 500; the body is left as is rather than corrupted with a second
// document.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				rid, _ := c.Get(requestIDKey)
				log.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("request_id", asString(rid)).
					Msg("panic recovered")

				if !c.Writer.Written() {
					c.Header("Content-Type", "application/json")
					c.Header(requestIDHeader, asString(rid))
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"request_id": asString(rid),
						"code":       "internal_error",
						"message":    "internal server error",
					})
					return
				}
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped zerolog.Logger, or the process-wide
// logger when none was attached. Never nil, so call sites chain directly:
//
//	middleware.LoggerFrom(c).Warn().Str("order_id", id).Msg("...")
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get("logger"); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// asString unwraps a context value to string, or "" when it is absent or not
// a string.
func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate caps s at max bytes, marking the cut with an ellipsis. max <= 0
// disables the cap. Byte-oriented on purpose; this feeds logs, not users.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
