package httpauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// StaticToken is a fixed API key.
type StaticToken string

func (s StaticToken) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty api key")
	}
	return string(s), nil
}

func (s StaticToken) Refresh(ctx context.Context) (string, error) {
	return "", ErrRefreshUnsupported
}

// expiryMargin renews tokens before the provider considers them expired.
// Short-lived tokens use a fifth of their lifetime instead.
const expiryMargin = 5 * time.Minute

// RefreshTokenSource exchanges a long-lived refresh token for short-lived
// access tokens and caches them until shortly before expiry.
type RefreshTokenSource struct {
	tokenURL     string
	clientID     string
	refreshToken string
	http         *http.Client
	now          func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewRefreshTokenSource(tokenURL, clientID, refreshToken string) *RefreshTokenSource {
	return &RefreshTokenSource{
		tokenURL:     tokenURL,
		clientID:     clientID,
		refreshToken: refreshToken,
		http:         &http.Client{Timeout: 30 * time.Second},
		now:          time.Now,
	}
}

func (s *RefreshTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && s.now().Before(s.expires) {
		return s.token, nil
	}
	return s.fetch(ctx)
}

// Refresh discards the cached token and fetches a new one.
func (s *RefreshTokenSource) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return s.fetch(ctx)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func (s *RefreshTokenSource) fetch(ctx context.Context) (string, error) {
	form := url.Values{
		"client_id":     {s.clientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {s.refreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("token endpoint error: %d %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	token := tr.AccessToken
	if token == "" {
		token = tr.IDToken
	}
	if token == "" {
		return "", fmt.Errorf("token endpoint returned no token")
	}
	if tr.RefreshToken != "" {
		s.refreshToken = tr.RefreshToken
	}

	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	margin := expiryMargin
	if m := ttl / 5; m < margin {
		margin = m
	}
	s.token = token
	s.expires = s.now().Add(ttl - margin)
	return token, nil
}
