package auth

import "context"

type identityContextKey struct{}
type adminContextKey struct{}

// ContextWithIdentity attaches the authenticated identity to the context.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, &identity)
}

// IdentityFromContext extracts the authenticated identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	v, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || v == nil || v.ID == "" {
		return Identity{}, false
	}
	return *v, true
}

// ContextWithAdmin stores the admin record of the caller.
func ContextWithAdmin(ctx context.Context, admin AdminLogin) context.Context {
	return context.WithValue(ctx, adminContextKey{}, &admin)
}

// AdminFromContext returns the admin record if a previous guard attached one.
func AdminFromContext(ctx context.Context) (AdminLogin, bool) {
	if ctx == nil {
		return AdminLogin{}, false
	}
	v, ok := ctx.Value(adminContextKey{}).(*AdminLogin)
	if !ok || v == nil {
		return AdminLogin{}, false
	}
	return *v, true
}
