// Package identity resolves the signed-in user of a request from the auth
// platform's session cookies.
package identity

import (
	"context"
	"net/http"
	"strings"
	"time"

	"sanastro.app/internal/auth"
)

const (
	AccessCookie  = "sb-access-token"
	RefreshCookie = "sb-refresh-token"

	credentialPrefix = "sb-"
	refreshMaxAge    = 400 * 24 * time.Hour
)

// Options configures a Provider.
type Options struct {
	BaseURL      string
	AnonKey      string
	JWTSecret    string
	CookieDomain string
	Secure       bool
	HTTPClient   *http.Client
	Now          func() time.Time
}

// Provider reads, refreshes and clears session credentials.
type Provider struct {
	verifier *TokenVerifier
	api      *goTrue
	domain   string
	secure   bool
	now      func() time.Time
}

func NewProvider(opts Options) (*Provider, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	verifier, err := NewTokenVerifier(opts.JWTSecret, now)
	if err != nil {
		return nil, err
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Provider{
		verifier: verifier,
		api: &goTrue{
			baseURL: strings.TrimRight(opts.BaseURL, "/"),
			anonKey: opts.AnonKey,
			client:  client,
		},
		domain: opts.CookieDomain,
		secure: opts.Secure,
		now:    now,
	}, nil
}

// CurrentUser returns the identity behind the request credentials, or nil for
// an anonymous request. An expired access token is refreshed once and the new
// pair is written back to w. A refresh credential the platform no longer
// accepts yields auth.ErrInvalidRefreshToken.
func (p *Provider) CurrentUser(w http.ResponseWriter, r *http.Request) (*auth.Identity, error) {
	access := cookieValue(r, AccessCookie)
	refresh := cookieValue(r, RefreshCookie)
	if access == "" && refresh == "" {
		return nil, nil
	}

	if access != "" {
		id, err := p.verifier.Verify(access)
		if err == nil {
			return id, nil
		}
		if refresh == "" {
			return nil, err
		}
	}

	session, err := p.api.refresh(r.Context(), refresh)
	if err != nil {
		return nil, err
	}
	p.writeSession(w, session)

	if session.User.ID != "" {
		return &auth.Identity{ID: session.User.ID, Email: session.User.Email}, nil
	}
	return p.verifier.Verify(session.AccessToken)
}

// AccessToken returns the raw access token of the request, if any.
func (p *Provider) AccessToken(r *http.Request) string {
	return cookieValue(r, AccessCookie)
}

// PurgeCredentials expires every credential cookie. Calling it twice is harmless.
func (p *Provider) PurgeCredentials(w http.ResponseWriter, r *http.Request) {
	names := map[string]struct{}{AccessCookie: {}, RefreshCookie: {}}
	for _, c := range r.Cookies() {
		if strings.HasPrefix(c.Name, credentialPrefix) {
			names[c.Name] = struct{}{}
		}
	}
	for name := range names {
		http.SetCookie(w, p.cookie(name, "", -1))
	}
}

// SignOut revokes the platform session behind accessToken.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	if strings.TrimSpace(accessToken) == "" {
		return nil
	}
	return p.api.logout(ctx, accessToken)
}

func (p *Provider) writeSession(w http.ResponseWriter, s *Session) {
	accessMaxAge := s.ExpiresIn
	if accessMaxAge <= 0 {
		accessMaxAge = int(time.Hour.Seconds())
	}
	http.SetCookie(w, p.cookie(AccessCookie, s.AccessToken, accessMaxAge))
	http.SetCookie(w, p.cookie(RefreshCookie, s.RefreshToken, int(refreshMaxAge.Seconds())))
}

func (p *Provider) cookie(name, value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   p.domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		c.Expires = time.Unix(0, 0)
	}
	return c
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}
