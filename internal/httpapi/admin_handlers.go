package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"sanastro.app/internal/accounts"
	"sanastro.app/internal/auth"
)

type approveRequest struct {
	UserID string `json:"userId"`
}

type rejectRequest struct {
	UserID string `json:"userId"`
	Reason string `json:"reason"`
}

type approvalResponse struct {
	Success bool            `json:"success"`
	User    *auth.UserLogin `json:"user"`
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "page must be an integer")
		return
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "limit must be an integer")
		return
	}

	res, err := a.accounts.List(r.Context(), accounts.ListQuery{
		Filter: strings.TrimSpace(q.Get("filter")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		handleAccountsError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) approveUser(w http.ResponseWriter, r *http.Request) {
	admin, ok := auth.AdminFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusForbidden, "Forbidden")
		return
	}
	var req approveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.accounts.Approve(r.Context(), admin, req.UserID)
	if err != nil {
		handleAccountsError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, approvalResponse{Success: true, User: user})
}

func (a *API) rejectUser(w http.ResponseWriter, r *http.Request) {
	admin, ok := auth.AdminFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusForbidden, "Forbidden")
		return
	}
	var req rejectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.accounts.Reject(r.Context(), admin, req.UserID, req.Reason)
	if err != nil {
		handleAccountsError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, approvalResponse{Success: true, User: user})
}

// intParam parses an optional integer query value; empty means zero.
func intParam(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
