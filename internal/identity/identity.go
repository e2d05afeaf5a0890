// Package identity carries the verified caller through a request context.
package identity

import "context"

type ctxKey struct{}

// WithUID returns a context carrying uid.
func WithUID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, ctxKey{}, uid)
}

// UIDFrom returns the caller's uid, or "" for anonymous requests.
func UIDFrom(ctx context.Context) string {
	uid, _ := ctx.Value(ctxKey{}).(string)
	return uid
}
