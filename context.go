package goToken

import (
	"context"
	"time"
)

type requestTimeContextKey struct{}

// WithRequestTime attaches the time the transport started handling the
// request. Materialization prefers it over the engine clock for iat.
func WithRequestTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeContextKey{}, t)
}

// RequestTimeFromContext returns the time stored by [WithRequestTime], or
// the zero time.
func RequestTimeFromContext(ctx context.Context) time.Time {
	if ctx == nil {
		return time.Time{}
	}

	t, _ := ctx.Value(requestTimeContextKey{}).(time.Time)
	return t
}
