package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// NewOAuth2Config describes the identity provider endpoints for the device
// credential flow. The redirect port and path must match the values
// registered with the provider.
func NewOAuth2Config(clientID, issuer string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: clientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:   issuer + "/oauth/authorize",
			TokenURL:  issuer + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes:      []string{"openid", "profile", "email", "offline_access"},
		RedirectURL: "http://localhost:1455/auth/callback",
	}
}

type refreshResult struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	AccountID    string
}

type tokenRefreshResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
}

// refreshTokens exchanges a refresh token for new tokens. The endpoint
// expects an application/json body rather than form encoding, so the
// exchange bypasses oauth2.Config.TokenSource.
func refreshTokens(refreshToken, clientID, tokenURL string) (*refreshResult, error) {
	payload := map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
		"client_id":     clientID,
		"scope":         "openid profile email offline_access",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	resp, err := http.Post(tokenURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("refresh token request returned status %d", resp.StatusCode)
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read refresh response: %w", err)
	}

	var data tokenRefreshResponse
	if err := json.Unmarshal(respBody, &data); err != nil {
		return nil, fmt.Errorf("unable to parse refresh response: %w", err)
	}
	if data.IDToken == "" || data.AccessToken == "" {
		return nil, ErrRefreshFailed
	}

	newRefresh := data.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}
	return &refreshResult{
		AccessToken:  data.AccessToken,
		IDToken:      data.IDToken,
		RefreshToken: newRefresh,
		AccountID:    DeriveAccountID(data.IDToken),
	}, nil
}
