package httpapi

import (
	"errors"
	"net/http"

	"sanastro.app/internal/auth"
	"sanastro.app/internal/obs"
)

// currentIdentity resolves the caller, purging a session whose refresh token
// the auth platform no longer accepts.
func (a *API) currentIdentity(w http.ResponseWriter, r *http.Request) (*auth.Identity, error) {
	identity, err := a.identity.CurrentUser(w, r)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRefreshToken) {
			a.identity.PurgeCredentials(w, r)
		}
		return nil, err
	}
	if identity == nil {
		return nil, auth.ErrUnauthorized
	}
	return identity, nil
}

// requireSession rejects anonymous callers with 401.
func (a *API) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := a.currentIdentity(w, r)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ctx := auth.ContextWithIdentity(r.Context(), *identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin admits only identities present in the admin directory.
func (a *API) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := a.currentIdentity(w, r)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "Unauthorized")
			return
		}
		admin, err := a.admins.FindAdminByAuthID(r.Context(), identity.ID)
		switch {
		case errors.Is(err, auth.ErrNotFound), err == nil && admin == nil:
			writeError(w, r, http.StatusForbidden, "Forbidden")
			return
		case err != nil:
			obs.Logger().Error("httpapi: admin lookup failed",
				"request_id", RequestIDFromContext(r.Context()),
				"auth_id", identity.ID,
				"error", err,
			)
			writeError(w, r, http.StatusInternalServerError, "Internal server error")
			return
		}
		ctx := auth.ContextWithIdentity(r.Context(), *identity)
		ctx = auth.ContextWithAdmin(ctx, *admin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
