package httpapi

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"sanastro.app/internal/obs"
)

// NewFrontend serves page routes from a running frontend server when
// upstream is set, otherwise from a directory of prebuilt pages. With
// neither configured it returns nil and the API answers 404.
func NewFrontend(upstream, staticDir string) (http.Handler, error) {
	switch {
	case upstream != "":
		target, err := url.Parse(upstream)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("invalid frontend url %q", upstream)
		}
		proxy := httputil.NewSingleHostReverseProxy(target)
		proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			obs.Logger().Error("httpapi: frontend unavailable",
				"request_id", RequestIDFromContext(r.Context()),
				"path", r.URL.Path,
				"error", err,
			)
			writeError(w, r, http.StatusBadGateway, "frontend unavailable")
		}
		return proxy, nil
	case staticDir != "":
		info, err := os.Stat(staticDir)
		if err != nil {
			return nil, fmt.Errorf("static dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("static dir %q is not a directory", staticDir)
		}
		return http.FileServer(http.Dir(staticDir)), nil
	}
	return nil, nil
}
