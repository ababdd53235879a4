// Package auth manages the upstream credential file and token refresh.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"
	"golang.org/x/oauth2"
)

// TokenData represents the tokens stored in auth.json.
type TokenData struct {
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	AccountID    string `json:"account_id"`
}

// AuthFile represents the full auth.json contents.
type AuthFile struct {
	Tokens      TokenData `json:"tokens"`
	LastRefresh string    `json:"last_refresh"`
}

// HomeDir returns the credential storage directory.
func HomeDir() string {
	if d := os.Getenv("LLMGATE_HOME"); d != "" {
		return d
	}
	if d := os.Getenv("CODEX_HOME"); d != "" {
		return d
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".llmgate")
}

// ReadAuthFile searches known locations for auth.json.
func ReadAuthFile() (*AuthFile, error) {
	home, _ := os.UserHomeDir()
	candidates := []string{
		os.Getenv("LLMGATE_HOME"),
		os.Getenv("CODEX_HOME"),
		filepath.Join(home, ".llmgate"),
		filepath.Join(home, ".codex"),
	}
	for _, base := range candidates {
		if base == "" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(base, "auth.json"))
		if err != nil {
			continue
		}
		var af AuthFile
		if err := json.Unmarshal(data, &af); err != nil {
			continue
		}
		return &af, nil
	}
	return nil, ErrNoCredentials
}

// WriteAuthFile persists the auth data with 0600 permissions. The update is
// surgical: keys other tools keep in the same file survive untouched.
func WriteAuthFile(af *AuthFile) error {
	dir := HomeDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("unable to create auth home directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, "auth.json")

	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		data = []byte("{}\n")
	}
	for _, f := range []struct {
		path  string
		value string
	}{
		{"tokens.id_token", af.Tokens.IDToken},
		{"tokens.access_token", af.Tokens.AccessToken},
		{"tokens.refresh_token", af.Tokens.RefreshToken},
		{"tokens.account_id", af.Tokens.AccountID},
		{"last_refresh", af.LastRefresh},
	} {
		if data, err = sjson.SetBytes(data, f.path, f.value); err != nil {
			return fmt.Errorf("unable to render auth.json: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o600)
}

// TokenManager hands out valid upstream credentials, refreshing through the
// token endpoint when the access token is missing or near expiry. The mutex
// makes refresh single-flight across concurrent requests.
type TokenManager struct {
	mu   sync.Mutex
	conf *oauth2.Config
}

// NewTokenManager creates a token manager over the identity provider config.
func NewTokenManager(conf *oauth2.Config) *TokenManager {
	return &TokenManager{conf: conf}
}

// GetEffectiveAuth returns the access token and account id, refreshing first
// when the stored token is stale.
func (tm *TokenManager) GetEffectiveAuth() (accessToken, accountID string, err error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.effectiveAuth(false)
}

// ForceRefresh refreshes unconditionally. Used after the upstream rejects a
// token that still looked valid locally.
func (tm *TokenManager) ForceRefresh() (accessToken, accountID string, err error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.effectiveAuth(true)
}

func (tm *TokenManager) effectiveAuth(force bool) (string, string, error) {
	af, err := ReadAuthFile()
	if err != nil {
		return "", "", ErrNoCredentials
	}

	tokens := af.Tokens

	if tm.conf != nil && tm.conf.ClientID != "" && tokens.RefreshToken != "" {
		if force || tokens.AccessToken == "" || shouldRefreshAccessToken(tokens.AccessToken, af.LastRefresh) {
			refreshed, err := refreshTokens(tokens.RefreshToken, tm.conf.ClientID, tm.conf.Endpoint.TokenURL)
			if err != nil {
				log.WithError(err).Error("failed to refresh tokens")
				if force {
					return "", "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
				}
			} else {
				tokens.merge(refreshed)
				af.Tokens = tokens
				af.LastRefresh = time.Now().UTC().Format(time.RFC3339)
				if err := WriteAuthFile(af); err != nil {
					log.WithError(err).Error("unable to persist refreshed auth tokens")
				}
			}
		}
	}

	accountID := tokens.AccountID
	if accountID == "" {
		accountID = DeriveAccountID(tokens.IDToken)
	}
	return tokens.AccessToken, accountID, nil
}

func (td *TokenData) merge(r *refreshResult) {
	if r.AccessToken != "" {
		td.AccessToken = r.AccessToken
	}
	if r.IDToken != "" {
		td.IDToken = r.IDToken
	}
	if r.RefreshToken != "" {
		td.RefreshToken = r.RefreshToken
	}
	if r.AccountID != "" {
		td.AccountID = r.AccountID
	}
}

// shouldRefreshAccessToken reports whether the stored token is within the
// refresh window.
func shouldRefreshAccessToken(accessToken, lastRefresh string) bool {
	if accessToken == "" {
		return true
	}
	claims, err := ParseJWTClaims(accessToken)
	if err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return time.Until(exp.Time) <= 5*time.Minute
		}
	}
	if lastRefresh != "" {
		if t, err := time.Parse(time.RFC3339, lastRefresh); err == nil {
			return time.Since(t) >= 55*time.Minute
		}
	}
	return false
}
