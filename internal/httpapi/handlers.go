package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"sanastro.app/internal/access"
	"sanastro.app/internal/accounts"
	"sanastro.app/internal/auth"
	"sanastro.app/internal/obs"
	"sanastro.app/internal/places"
)

const serviceName = "sanastro-api"

// ReadyProbe is a simple readiness check (database ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// IdentityProvider resolves and terminates auth platform sessions.
type IdentityProvider interface {
	access.IdentityProvider
	AccessToken(r *http.Request) string
	SignOut(ctx context.Context, accessToken string) error
}

// Accounts is the signup and approval workflow.
type Accounts interface {
	List(ctx context.Context, q accounts.ListQuery) (*accounts.Page, error)
	Approve(ctx context.Context, admin auth.AdminLogin, userID string) (*auth.UserLogin, error)
	Reject(ctx context.Context, admin auth.AdminLogin, userID, reason string) (*auth.UserLogin, error)
	Register(ctx context.Context, identity auth.Identity, reg accounts.Registration) (*auth.UserLogin, bool, error)
	VerifyEmail(ctx context.Context, token string) error
}

// Places suggests locations for free-text input.
type Places interface {
	Autocomplete(ctx context.Context, input string) ([]places.Place, error)
}

// Options wires the API dependencies.
type Options struct {
	Version        string
	Ready          readinessChecker
	Identity       IdentityProvider
	Admins         access.AdminDirectory
	Users          access.UserDirectory
	Accounts       Accounts
	Places         Places
	Frontend       http.Handler
	AllowedOrigins []string
	MaxBodyBytes   int64
	RateBurst      int
	RatePerSec     int
	TrustedProxies []netip.Prefix
}

// API is the HTTP layer.
type API struct {
	router     chi.Router
	readyProbe readinessChecker
	version    string

	identity IdentityProvider
	admins   access.AdminDirectory
	accounts Accounts
	places   Places
	resolver *access.Resolver
	frontend http.Handler

	allowedOrigins []string
	maxBodyBytes   int64
	rateBurst      int
	ratePerSec     int
	trustedProxies []netip.Prefix
}

func New(opts Options) *API {
	a := &API{
		readyProbe:     opts.Ready,
		version:        opts.Version,
		identity:       opts.Identity,
		admins:         opts.Admins,
		accounts:       opts.Accounts,
		places:         opts.Places,
		frontend:       opts.Frontend,
		allowedOrigins: opts.AllowedOrigins,
		maxBodyBytes:   opts.MaxBodyBytes,
		rateBurst:      opts.RateBurst,
		ratePerSec:     opts.RatePerSec,
		trustedProxies: opts.TrustedProxies,
		resolver: &access.Resolver{
			Identity: opts.Identity,
			Admins:   opts.Admins,
			Users:    opts.Users,
		},
	}
	if a.readyProbe == nil {
		a.readyProbe = ReadyProbe{}
	}
	if a.frontend == nil {
		a.frontend = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, http.StatusNotFound, "not found")
		})
	}
	if a.maxBodyBytes <= 0 {
		a.maxBodyBytes = 1 << 20
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 10
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 5
	}
	a.router = a.routes()
	return a
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(methodNotAllowed)

	r.Use(RealIP(a.trustedProxies))
	r.Use(RequestID)
	r.Use(LoggingJSON)
	r.Use(middleware.Recoverer)
	r.Use(obs.Instrument)
	r.Use(SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(MaxBodyBytes(a.maxBodyBytes))

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)
	r.Handle("/metrics", obs.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/admin", func(r chi.Router) {
			r.Use(a.requireAdmin)
			r.Get("/users", a.listUsers)
			r.Post("/approve-user", a.approveUser)
			r.Post("/reject-user", a.rejectUser)
		})
		r.Route("/auth", func(r chi.Router) {
			r.With(a.requireSession).Post("/register", a.register)
			r.Get("/verify", a.verifyEmail)
		})
		r.Route("/places", func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler {
				return RateLimit(next, a.rateBurst, a.ratePerSec)
			})
			r.Get("/autocomplete", a.autocomplete)
			r.HandleFunc("/details", a.placeDetails)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(access.Gate(a.resolver))
		r.Get("/auth/logout", a.logout)
		r.Handle("/*", a.frontend)
	})
	return r
}

// Handler returns the root http.Handler.
func (a *API) Handler() http.Handler {
	return a.router
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

var errBodyRequired = errors.New("request body is required")

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{"error": msg}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return errBodyRequired
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errBodyRequired
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// handleAccountsError maps workflow errors onto HTTP statuses.
func handleAccountsError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, inputMessage(err))
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "User not found")
	case errors.Is(err, auth.ErrGone):
		writeError(w, r, http.StatusGone, "Verification link has expired or was already used")
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "Forbidden")
	default:
		obs.Logger().Error("httpapi: request failed",
			"request_id", RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

func inputMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), auth.ErrInvalidInput.Error()+": ")
	if msg == "" || msg == auth.ErrInvalidInput.Error() {
		return "invalid input"
	}
	return msg
}
