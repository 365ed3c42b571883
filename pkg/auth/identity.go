// Package auth extracts the caller identity and applies the perimeter
// middleware: CORS, request logging, and per-caller rate limiting.
// Credential verification happens upstream; this server trusts the
// X-User-ID header the gateway forwards.
package auth

import (
	"context"
	"net/http"
)

type ctxKey struct{}

// HeaderUserID is the trusted identity header set by the gateway.
const HeaderUserID = "X-User-ID"

// WithUserID stores the caller identity on the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID returns the caller identity from the request context, or ""
// for unauthenticated requests.
func UserID(r *http.Request) string {
	if v, ok := r.Context().Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}
