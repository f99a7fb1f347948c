package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"sanastro.app/internal/access"
	"sanastro.app/internal/accounts"
	"sanastro.app/internal/auth"
	"sanastro.app/internal/obs"
)

type registerRequest struct {
	FullName string `json:"fullName"`
}

type registerResponse struct {
	User    *auth.UserLogin `json:"user"`
	Created bool            `json:"created"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, errBodyRequired) {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, created, err := a.accounts.Register(r.Context(), identity, accounts.Registration{FullName: req.FullName})
	if err != nil {
		handleAccountsError(w, r, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, registerResponse{User: user, Created: created})
}

func (a *API) verifyEmail(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		writeError(w, r, http.StatusBadRequest, "token is required")
		return
	}
	err := a.accounts.VerifyEmail(r.Context(), token)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"verified": true})
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "Verification token not found")
	default:
		handleAccountsError(w, r, err)
	}
}

// logout revokes the platform session, drops every credential cookie and
// returns the browser to the login page.
func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if token := a.identity.AccessToken(r); token != "" {
		if err := a.identity.SignOut(r.Context(), token); err != nil {
			obs.Logger().Warn("httpapi: sign out failed",
				"request_id", RequestIDFromContext(r.Context()),
				"error", err,
			)
		}
	}
	a.identity.PurgeCredentials(w, r)
	http.Redirect(w, r, access.LoginPath, http.StatusFound)
}
