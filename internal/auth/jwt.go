package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// ParseJWTClaims decodes the payload of a JWT without verifying the
// signature. The gateway is a client of the identity provider, not a
// verifier; it only reads its own tokens back.
func ParseJWTClaims(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, ErrInvalidJWT
	}
	return claims, nil
}

// DeriveAccountID extracts the upstream account id from an id_token's claims.
func DeriveAccountID(idToken string) string {
	if idToken == "" {
		return ""
	}
	claims, err := ParseJWTClaims(idToken)
	if err != nil {
		return ""
	}
	authClaims, ok := claims["https://api.openai.com/auth"].(map[string]any)
	if !ok {
		return ""
	}
	accountID, _ := authClaims["chatgpt_account_id"].(string)
	return accountID
}
