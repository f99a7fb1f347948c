package access

import (
	"net/http"

	"sanastro.app/internal/obs"
)

// Gate wraps page handlers with the navigation rules. Bypassed paths are
// passed through untouched; everything else is resolved, decided and either
// redirected with 302 Found or forwarded with the AccessContext attached.
func Gate(res *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if Bypassed(path) {
				next.ServeHTTP(w, r)
				return
			}

			ac := res.Resolve(w, r)
			class := Classify(path)
			decision := Decide(path, ac)

			if decision.Redirect() {
				obs.ObserveAccessDecision(class.String(), "redirect")
				obs.Logger().Debug("access: redirect",
					"path", path,
					"route_class", class.String(),
					"target", decision.Target,
					"admin", ac.IsAdmin,
					"approval_status", string(ac.ApprovalStatus),
				)
				http.Redirect(w, r, decision.Target, http.StatusFound)
				return
			}

			obs.ObserveAccessDecision(class.String(), "forward")
			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), ac)))
		})
	}
}
