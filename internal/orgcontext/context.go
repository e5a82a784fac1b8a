// Package orgcontext carries the organization scope through context.
package orgcontext

import "context"

type contextKey struct{}

// WithOrgID returns a context scoped to the given organization.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, contextKey{}, orgID)
}

// OrgID extracts the organization id from the context, if any.
func OrgID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(contextKey{}).(string)
	return v, ok && v != ""
}
