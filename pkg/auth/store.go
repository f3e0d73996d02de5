// Package auth manages OAuth credentials for providers that authenticate
// with short-lived bearer tokens instead of static API keys.
//
// Tokens live in a single JSON file keyed by provider name. The store keeps
// an in-memory copy guarded by a read-write lock and rewrites the file
// atomically on every mutation. A TokenStore is constructed once at process
// start and survives configuration reloads, so OAuth sessions are not
// disturbed when the rest of the proxy is rebuilt.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// RefreshSkew is how far ahead of expiry a token is considered stale.
// AccessToken refreshes any token that expires within this window so
// upstream calls never race the expiry deadline.
const RefreshSkew = 60 * time.Second

// ErrNoToken is returned when a provider is configured for OAuth but no
// token has been stored for it. Tokens are issued out of band and placed
// in the store file; the proxy never runs the browser flow itself.
var ErrNoToken = errors.New("no oauth token stored for provider")

// OAuthToken is the credential triple persisted per provider.
type OAuthToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`

	// ExpiresAt is the access token expiry as unix seconds.
	ExpiresAt int64 `json:"expires_at"`
}

// Expired reports whether the access token is past its expiry.
func (t OAuthToken) Expired() bool {
	return time.Now().Unix() >= t.ExpiresAt
}

// NeedsRefresh reports whether the token expires within skew of now.
func (t OAuthToken) NeedsRefresh(skew time.Duration) bool {
	return time.Now().Add(skew).Unix() >= t.ExpiresAt
}

// Refresher exchanges a refresh token for a fresh credential triple.
// OAuthClient is the production implementation.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (OAuthToken, error)
}

// TokenStore is a thread-safe map from provider name to OAuthToken,
// persisted to a JSON file. Reads are concurrent; mutations hold the write
// lock across both the map update and the file rewrite so the file on disk
// always reflects a consistent snapshot.
type TokenStore struct {
	path      string
	refresher Refresher

	mu     sync.RWMutex
	tokens map[string]OAuthToken

	// refreshLocks serializes refreshes per provider so concurrent callers
	// hitting the same stale token trigger exactly one network call.
	refreshLocksMu sync.Mutex
	refreshLocks   map[string]*sync.Mutex
}

// NewTokenStore opens the token file at path, creating an empty store when
// the file does not exist yet. A malformed file is an error rather than a
// silent reset; losing refresh tokens would force re-authentication.
func NewTokenStore(path string, refresher Refresher) (*TokenStore, error) {
	s := &TokenStore{
		path:         path,
		refresher:    refresher,
		tokens:       make(map[string]OAuthToken),
		refreshLocks: make(map[string]*sync.Mutex),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	if err := json.Unmarshal(data, &s.tokens); err != nil {
		return nil, fmt.Errorf("failed to parse token file %s: %w", path, err)
	}

	return s, nil
}

// Path returns the backing file path.
func (s *TokenStore) Path() string {
	return s.path
}

// Get returns the stored token for a provider.
func (s *TokenStore) Get(provider string) (OAuthToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.tokens[provider]
	return tok, ok
}

// Set stores a token for a provider and persists the store.
func (s *TokenStore) Set(provider string, token OAuthToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[provider] = token
	return s.persistLocked()
}

// Remove deletes a provider's token and persists the store.
func (s *TokenStore) Remove(provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, provider)
	return s.persistLocked()
}

// Providers returns the provider names with stored tokens, sorted.
func (s *TokenStore) Providers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tokens))
	for name := range s.tokens {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AccessToken returns a bearer token for the provider that is valid for at
// least RefreshSkew from now. A stale token is refreshed first; concurrent
// callers for the same provider coalesce onto a single refresh and all
// receive its result.
func (s *TokenStore) AccessToken(ctx context.Context, provider string) (string, error) {
	tok, ok := s.Get(provider)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoToken, provider)
	}

	if !tok.NeedsRefresh(RefreshSkew) {
		return tok.AccessToken, nil
	}

	if s.refresher == nil {
		return "", fmt.Errorf("oauth token for %s expired and no refresher configured", provider)
	}

	lock := s.refreshLock(provider)
	lock.Lock()
	defer lock.Unlock()

	// Another caller may have completed the refresh while we waited.
	tok, ok = s.Get(provider)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoToken, provider)
	}
	if !tok.NeedsRefresh(RefreshSkew) {
		return tok.AccessToken, nil
	}

	fresh, err := s.refresher.Refresh(ctx, tok.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("oauth refresh for %s failed: %w", provider, err)
	}
	if fresh.RefreshToken == "" {
		// The token endpoint may omit rotation; keep the working one.
		fresh.RefreshToken = tok.RefreshToken
	}

	if err := s.Set(provider, fresh); err != nil {
		return "", fmt.Errorf("failed to persist refreshed token for %s: %w", provider, err)
	}

	return fresh.AccessToken, nil
}

// refreshLock returns the per-provider refresh mutex, creating it on first use.
func (s *TokenStore) refreshLock(provider string) *sync.Mutex {
	s.refreshLocksMu.Lock()
	defer s.refreshLocksMu.Unlock()
	lock, ok := s.refreshLocks[provider]
	if !ok {
		lock = &sync.Mutex{}
		s.refreshLocks[provider] = lock
	}
	return lock
}

// persistLocked rewrites the token file. Callers hold s.mu.
// The file is written to a temp sibling, fsynced, then renamed into place,
// and carries 0600 permissions since it holds live credentials.
func (s *TokenStore) persistLocked() error {
	data, err := json.MarshalIndent(s.tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize tokens: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close token file: %w", err)
	}

	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set token file permissions: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace token file: %w", err)
	}

	return nil
}
