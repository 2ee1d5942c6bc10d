package testutil

import (
	"context"
	"net/http"

	"twinhub/internal/platform/middleware"
)

// WithSubject adds an authenticated subject to the request context, simulating
// what the auth middleware does after validating a bearer token.
func WithSubject(req *http.Request, subject string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.ContextKeySubject, subject)
	return req.WithContext(ctx)
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
