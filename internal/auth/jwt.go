package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in tokens. Facilitators create sessions and enter manual
// records; members and kiosks only submit scans.
const (
	RoleMember      = "member"
	RoleFacilitator = "facilitator"
	RoleKiosk       = "kiosk"
)

// Token is an issued access token with its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Claims is the JWT payload for a scanning identity. Authentication itself
// happens upstream; this core only consumes the verified member identity.
type Claims struct {
	Subject     string `json:"sub"`
	Role        string `json:"role"`
	DisplayName string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs an access token for the given identity.
func Issue(subject, role, displayName, issuer, key string, ttl time.Duration) (Token, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := Claims{
		Subject:     subject,
		Role:        role,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// Parse validates a token and returns its claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}
