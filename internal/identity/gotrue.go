package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"sanastro.app/internal/auth"
)

// Session is a token pair issued by the auth platform.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type apiError struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e apiError) kind() string {
	if e.ErrorCode != "" {
		return e.ErrorCode
	}
	return e.Error
}

func (e apiError) message() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.ErrorDescription
}

// Error codes that mean the refresh credential can never succeed again.
var invalidRefreshCodes = map[string]struct{}{
	"refresh_token_not_found":    {},
	"refresh_token_already_used": {},
	"session_not_found":          {},
	"session_expired":            {},
	"invalid_grant":              {},
}

type goTrue struct {
	baseURL string
	anonKey string
	client  *http.Client
}

func (g *goTrue) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/auth/v1/token?grant_type=refresh_token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", g.anonKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read refresh response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		_ = json.Unmarshal(payload, &apiErr)
		if _, ok := invalidRefreshCodes[apiErr.kind()]; ok {
			return nil, fmt.Errorf("%w: %s", auth.ErrInvalidRefreshToken, apiErr.kind())
		}
		return nil, fmt.Errorf("refresh session: status %d: %s", resp.StatusCode, strings.TrimSpace(apiErr.message()))
	}

	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}
	if session.AccessToken == "" || session.RefreshToken == "" {
		return nil, fmt.Errorf("refresh session: incomplete token pair")
	}
	return &session, nil
}

func (g *goTrue) logout(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/auth/v1/logout", nil)
	if err != nil {
		return fmt.Errorf("build logout request: %w", err)
	}
	req.Header.Set("apikey", g.anonKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		// session already gone
		return nil
	default:
		return fmt.Errorf("sign out: status %d", resp.StatusCode)
	}
}
