package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"verishield-pipeline/domain"
	"verishield-pipeline/metrics"
)

const tokenSafetyMargin = 60 * time.Second

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}

// CredentialStore caches a client-credentials bearer token for one upstream.
// Concurrent refreshes are coalesced into a single exchange.
type CredentialStore struct {
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string
	userAgent    string
	now          func() time.Time

	mu    sync.Mutex
	token *domain.CredentialToken
	group singleflight.Group
}

type CredentialOption func(*CredentialStore)

func WithCredentialHTTPClient(c *http.Client) CredentialOption {
	return func(s *CredentialStore) { s.httpClient = c }
}

func WithClock(now func() time.Time) CredentialOption {
	return func(s *CredentialStore) { s.now = now }
}

func NewCredentialStore(tokenURL, clientID, clientSecret, userAgent string, opts ...CredentialOption) *CredentialStore {
	s := &CredentialStore{
		httpClient:   &http.Client{Timeout: 5 * time.Second},
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		userAgent:    userAgent,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureToken returns the cached token while it is valid for at least the
// safety margin, otherwise exchanges the client credentials for a new one.
func (s *CredentialStore) EnsureToken(ctx context.Context) (string, error) {
	if s.clientID == "" || s.clientSecret == "" {
		return "", fmt.Errorf("client id and secret must be set: %w", domain.ErrConfiguration)
	}

	s.mu.Lock()
	cached := s.token
	s.mu.Unlock()
	if cached.ValidAt(s.now(), tokenSafetyMargin) {
		return cached.Value, nil
	}

	v, err, _ := s.group.Do("token", func() (interface{}, error) {
		// Another caller may have refreshed while we waited.
		s.mu.Lock()
		current := s.token
		s.mu.Unlock()
		if current.ValidAt(s.now(), tokenSafetyMargin) {
			return current.Value, nil
		}

		token, err := s.exchange(ctx)
		if err != nil {
			return "", err
		}
		s.mu.Lock()
		s.token = token
		s.mu.Unlock()
		return token.Value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token if it is still the rejected one, so the
// next EnsureToken performs a fresh exchange.
func (s *CredentialStore) Invalidate(rejected string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != nil && (rejected == "" || s.token.Value == rejected) {
		s.token = nil
	}
}

func (s *CredentialStore) exchange(ctx context.Context) (*domain.CredentialToken, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(s.clientID, s.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	metrics.TokenExchange()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransientError{Op: "token exchange", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("token exchange rejected with status %d: %w", resp.StatusCode, domain.ErrConfiguration)
	case resp.StatusCode != http.StatusOK:
		return nil, &domain.TransientError{Op: "token exchange", StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status")}
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &domain.TransientError{Op: "token exchange", Err: fmt.Errorf("failed to decode token: %w", err)}
	}
	if body.AccessToken == "" {
		return nil, fmt.Errorf("token exchange returned no token (%s): %w", body.Error, domain.ErrConfiguration)
	}

	return &domain.CredentialToken{
		Value:     body.AccessToken,
		ExpiresAt: s.now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}, nil
}
