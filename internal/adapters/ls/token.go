package ls

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kkim/hanaro-trader/internal/domain"
	"github.com/kkim/hanaro-trader/internal/ports"
)

// TokenManager implements the C3 token state machine: NONE -> issuing ->
// VALID -> (near-expiry) -> REFRESHING -> VALID, or -> EXPIRED ->
// re-issuing -> VALID. Concurrent callers during a refresh coalesce onto
// the same in-flight result (single-flight).
type TokenManager struct {
	client *Client
	store  ports.TokenStore

	mu      sync.Mutex
	current ports.Token
	loaded  bool

	inflight chan struct{} // non-nil while a refresh/issue is in flight
	infErr   error
}

// NewTokenManager constructs a TokenManager backed by store.
func NewTokenManager(client *Client, store ports.TokenStore) *TokenManager {
	return &TokenManager{client: client, store: store}
}

// GetValid returns a token that will remain valid for at least the
// refresh slack, refreshing or re-issuing as needed. Property: it never
// returns a token whose expiry is within the slack window.
func (m *TokenManager) GetValid(ctx context.Context) (ports.Token, error) {
	m.mu.Lock()
	if !m.loaded {
		if t, ok, err := m.store.Load(ctx); err == nil && ok {
			m.current = t
		}
		m.loaded = true
	}
	tok := m.current
	now := time.Now()
	if tok.Valid(now) {
		m.mu.Unlock()
		return tok, nil
	}

	if m.inflight != nil {
		ch := m.inflight
		m.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ports.Token{}, ctx.Err()
		}
		m.mu.Lock()
		tok, err := m.current, m.infErr
		m.mu.Unlock()
		if err != nil {
			return ports.Token{}, err
		}
		return tok, nil
	}

	ch := make(chan struct{})
	m.inflight = ch
	m.mu.Unlock()

	newTok, err := m.refreshOrIssue(ctx, tok)

	m.mu.Lock()
	if err == nil {
		m.current = newTok
		_ = m.store.Save(ctx, newTok)
	}
	m.infErr = err
	m.inflight = nil
	m.mu.Unlock()
	close(ch)

	if err != nil {
		return ports.Token{}, fmt.Errorf("token refresh/issue: %w: %w", domain.ErrTokenUnavailable, err)
	}
	return newTok, nil
}

func (m *TokenManager) refreshOrIssue(ctx context.Context, prior ports.Token) (ports.Token, error) {
	if prior.RefreshToken != "" {
		if t, err := m.doIssue(ctx, url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {prior.RefreshToken},
		}); err == nil {
			return t, nil
		}
	}
	return m.doIssue(ctx, url.Values{
		"grant_type":     {"client_credentials"},
		"appkey":         {m.client.appKey},
		"appsecretkey":   {m.client.appSecretKey},
		"scope":          {"oob"},
	})
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    string `json:"expires_in"`
}

func (m *TokenManager) doIssue(ctx context.Context, form url.Values) (ports.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, domain.TokenIssueTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.client.restBase+"/oauth2/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return ports.Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.http.Do(req)
	if err != nil {
		return ports.Token{}, fmt.Errorf("oauth2/token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ports.Token{}, fmt.Errorf("oauth2/token status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return ports.Token{}, fmt.Errorf("oauth2/token decode: %w", err)
	}
	secs, _ := strconv.Atoi(tr.ExpiresIn)
	if secs == 0 {
		secs = 3600
	}
	return ports.Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		ExpiresAt:    time.Now().Add(time.Duration(secs) * time.Second),
	}, nil
}
