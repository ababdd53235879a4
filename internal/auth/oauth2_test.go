package auth

import "testing"

func TestNewOAuth2Config(t *testing.T) {
	conf := NewOAuth2Config("app_1", "https://idp.example")

	if conf.ClientID != "app_1" {
		t.Errorf("client id: %q", conf.ClientID)
	}
	if conf.Endpoint.AuthURL != "https://idp.example/oauth/authorize" {
		t.Errorf("auth url: %q", conf.Endpoint.AuthURL)
	}
	if conf.Endpoint.TokenURL != "https://idp.example/oauth/token" {
		t.Errorf("token url: %q", conf.Endpoint.TokenURL)
	}
	if len(conf.Scopes) == 0 || conf.Scopes[0] != "openid" {
		t.Errorf("scopes: %v", conf.Scopes)
	}
	if conf.RedirectURL == "" {
		t.Error("redirect url must match the registered callback")
	}
}
