// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file establishes request identity. It parses an optional Bearer token
// (HMAC-signed JWT) and stashes the subject and plan tier in the Gin context
// for downstream handlers. Identity here is *informational*: the middleware
// never rejects a request for missing credentials, because endpoints must be
// able to distinguish "no identity" (401) from "identity without entitlement"
// (403) in their own error mapping.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys for identity state set by Auth.
const (
	ctxKeyUserID = "userID"
	ctxKeyPlan   = "plan"
)

// AuthOptions configures the Auth middleware.
type AuthOptions struct {
	// JWTSecret is the HMAC key used to verify Bearer tokens. Empty disables
	// token parsing entirely.
	JWTSecret string
	// AllowDemoHeader accepts X-User-ID / X-User-Plan as identity when no
	// valid token is present. Intended for tests and local development only.
	AllowDemoHeader bool
}

// accessClaims is the token payload this service understands: the registered
// subject plus the billing plan tier assigned at token issue time.
type accessClaims struct {
	Plan string `json:"plan,omitempty"`
	jwt.RegisteredClaims
}

// Auth returns a middleware that resolves the caller's identity.
//
// Resolution order:
//  1. A valid "Authorization: Bearer <jwt>" signed with the configured HMAC
//     secret; the token's subject becomes the user ID and its "plan" claim
//     the plan tier.
//  2. When AllowDemoHeader is set, the X-User-ID and X-User-Plan headers.
//  3. Otherwise no identity is attached; downstream guards respond 401.
//
// Malformed or badly signed tokens are treated as absent identity rather than
// rejected here, so an expired token on a public endpoint still gets the
// endpoint's own error semantics.
func Auth(opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid, plan, ok := identityFromBearer(c, opts.JWTSecret); ok {
			c.Set(ctxKeyUserID, uid)
			if plan != "" {
				c.Set(ctxKeyPlan, plan)
			}
			c.Next()
			return
		}

		if opts.AllowDemoHeader {
			if uid := strings.TrimSpace(c.GetHeader("X-User-ID")); uid != "" {
				c.Set(ctxKeyUserID, uid)
				if plan := strings.TrimSpace(c.GetHeader("X-User-Plan")); plan != "" {
					c.Set(ctxKeyPlan, plan)
				}
			}
		}
		c.Next()
	}
}

// identityFromBearer verifies the Authorization header, returning the token
// subject and plan claim. ok is false for absent, malformed, unsigned, or
// expired tokens.
func identityFromBearer(c *gin.Context, secret string) (uid, plan string, ok bool) {
	if secret == "" {
		return "", "", false
	}
	auth := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", "", false
	}
	raw := strings.TrimSpace(auth[len(prefix):])
	if raw == "" {
		return "", "", false
	}

	claims := &accessClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, isHMAC := t.Method.(*jwt.SigningMethodHMAC); !isHMAC {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil || !tok.Valid || claims.Subject == "" {
		return "", "", false
	}
	return claims.Subject, claims.Plan, true
}

// UserID returns the authenticated user identifier from the Gin context, or
// "" when the request carries no identity.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// PlanTier returns the caller's plan tier claim, or "" when absent. Callers
// should normalize through the policy package's plan parsing, which defaults
// unknown tiers to free.
func PlanTier(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyPlan); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
