package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"sanastro.app/internal/obs"
	"sanastro.app/internal/places"
)

func (a *API) autocomplete(w http.ResponseWriter, r *http.Request) {
	input := strings.TrimSpace(r.URL.Query().Get("input"))
	if input == "" {
		writeError(w, r, http.StatusBadRequest, "Input is required")
		return
	}
	results, err := a.places.Autocomplete(r.Context(), input)
	if err != nil {
		if errors.Is(err, places.ErrEmptyInput) {
			writeError(w, r, http.StatusBadRequest, "Input is required")
			return
		}
		obs.Logger().Error("httpapi: place autocomplete failed",
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
		writeError(w, r, http.StatusInternalServerError, "Failed to fetch place suggestions")
		return
	}
	if results == nil {
		results = []places.Place{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (a *API) placeDetails(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusGone, "This endpoint is deprecated. Use /api/places/autocomplete instead.")
}
