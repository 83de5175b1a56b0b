package testutil

import (
	"net/http"

	id "japa/pkg/domain"
	"japa/pkg/requestcontext"
)

// WithProfile adds an authenticated profile to the request context,
// simulating what the auth middleware does for a valid token. An invalid
// profile id is silently ignored.
func WithProfile(req *http.Request, profileID string) *http.Request {
	parsed, err := id.ParseProfileID(profileID)
	if err != nil {
		return req
	}
	ctx := requestcontext.WithProfileID(req.Context(), parsed)
	return req.WithContext(ctx)
}

// WithRequestID adds a request id to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	return req.WithContext(ctx)
}
