package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DelegatedClaims are carried by a delegated CDN access token.
type DelegatedClaims struct {
	PrincipalID string `json:"principal_id"`
	Scope       string `json:"scope"`
	jwt.RegisteredClaims
}

const scopeFileAccess = "cdn:file-access"

// JWTMinter mints HMAC-signed delegated tokens for principals.
type JWTMinter struct {
	key    []byte
	issuer string
	now    func() time.Time
}

func NewJWTMinter(signingKey, issuer string) (*JWTMinter, error) {
	if signingKey == "" {
		return nil, errors.New("token signing key cannot be empty")
	}
	return &JWTMinter{key: []byte(signingKey), issuer: issuer, now: time.Now}, nil
}

// MintDelegatedToken returns a token for principalID valid for ttl.
func (m *JWTMinter) MintDelegatedToken(ctx context.Context, principalID string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if principalID == "" {
		return "", errors.New("principal id is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("invalid token ttl: %s", ttl)
	}

	now := m.now()
	claims := DelegatedClaims{
		PrincipalID: principalID,
		Scope:       scopeFileAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   principalID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("sign delegated token: %w", err)
	}
	return signed, nil
}

// verify parses a token minted by m and returns its claims.
func (m *JWTMinter) verify(token string) (*DelegatedClaims, error) {
	claims := &DelegatedClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("verify delegated token: %w", err)
	}
	return claims, nil
}
