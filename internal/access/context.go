package access

import (
	"context"
	"errors"
	"net/http"

	"sanastro.app/internal/audit"
	"sanastro.app/internal/auth"
	"sanastro.app/internal/obs"
)

// IdentityProvider reports who is signed in and can drop stale credentials.
type IdentityProvider interface {
	CurrentUser(w http.ResponseWriter, r *http.Request) (*auth.Identity, error)
	PurgeCredentials(w http.ResponseWriter, r *http.Request)
}

// AdminDirectory finds operators by their auth platform id.
type AdminDirectory interface {
	FindAdminByAuthID(ctx context.Context, authID string) (*auth.AdminLogin, error)
}

// UserDirectory finds application users by their auth platform id.
type UserDirectory interface {
	FindUserByAuthID(ctx context.Context, authID string) (*auth.UserLogin, error)
}

// AccessContext is the per-request view of the caller. An empty
// ApprovalStatus means the identity has no application record.
// IsAdmin implies ApprovalStatus == auth.StatusApproved.
type AccessContext struct {
	Identity       *auth.Identity
	IsAdmin        bool
	ApprovalStatus auth.ApprovalStatus
}

// Anonymous reports whether no identity is attached.
func (c AccessContext) Anonymous() bool {
	return c.Identity == nil
}

// Resolver builds an AccessContext from the identity provider and the two directories.
type Resolver struct {
	Identity IdentityProvider
	Admins   AdminDirectory
	Users    UserDirectory
}

// Resolve never fails: every lookup error degrades to the less privileged answer.
func (res *Resolver) Resolve(w http.ResponseWriter, r *http.Request) AccessContext {
	ctx := r.Context()
	log := obs.Logger()

	identity, err := res.Identity.CurrentUser(w, r)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRefreshToken) {
			res.Identity.PurgeCredentials(w, r)
			_ = audit.LogEvent(ctx, audit.EventSessionPurged, map[string]any{"path": r.URL.Path})
		} else {
			log.Warn("access: identity resolution failed", "path", r.URL.Path, "error", err)
		}
		return AccessContext{}
	}
	if identity == nil {
		return AccessContext{}
	}

	ac := AccessContext{Identity: identity}

	admin, err := res.Admins.FindAdminByAuthID(ctx, identity.ID)
	if err != nil && !errors.Is(err, auth.ErrNotFound) {
		log.Warn("access: admin lookup failed", "auth_id", identity.ID, "error", err)
	}
	if err == nil && admin != nil {
		ac.IsAdmin = true
		ac.ApprovalStatus = auth.StatusApproved
		return ac
	}

	user, err := res.Users.FindUserByAuthID(ctx, identity.ID)
	if err != nil && !errors.Is(err, auth.ErrNotFound) {
		log.Warn("access: user lookup failed", "auth_id", identity.ID, "error", err)
	}
	if err == nil && user != nil && user.ApprovalStatus.Valid() {
		ac.ApprovalStatus = user.ApprovalStatus
	}
	return ac
}

type contextKey struct{}

// WithContext attaches ac to ctx for downstream handlers.
func WithContext(ctx context.Context, ac AccessContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext returns the AccessContext attached by the Gate.
func FromContext(ctx context.Context) (AccessContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AccessContext)
	return ac, ok
}
