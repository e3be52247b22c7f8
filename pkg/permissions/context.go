package permissions

import (
	"context"

	"github.com/platinummonkey/campus/pkg/contextkeys"
)

// WithResolver stores r in ctx
func WithResolver(ctx context.Context, r *Resolver) context.Context {
	return context.WithValue(ctx, contextkeys.PermissionsKey, r)
}

// FromContext returns the request's resolver. A missing resolver grants nothing.
func FromContext(ctx context.Context) *Resolver {
	if r, ok := ctx.Value(contextkeys.PermissionsKey).(*Resolver); ok && r != nil {
		return r
	}
	return &Resolver{}
}
