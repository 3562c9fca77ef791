package authz

import "context"

type callerContextKey struct{}

// WithCaller stores the caller context for the current request.
func WithCaller(ctx context.Context, caller Context) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext extracts the caller context. The second return value is
// false when no authentication middleware ran for this request.
func CallerFromContext(ctx context.Context) (Context, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(Context)
	return caller, ok
}
