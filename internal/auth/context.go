package auth

import "context"

// Principal is the verified identity attached to one request. It lives for
// the lifetime of that request only and is never cached across requests.
type Principal struct {
	SubjectID string
	Role      Role
}

type principalContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	if !ok || p.SubjectID == "" {
		return Principal{}, false
	}
	return p, true
}
