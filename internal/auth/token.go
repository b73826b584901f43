// Package auth verifies bearer tokens issued by the identity provider and
// attaches the resulting principal to the request context.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/odyssey-erp/catalog/internal/shared"
)

// Claims is the token payload this service understands.
type Claims struct {
	UserID       int64    `json:"uid"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 tokens.
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewVerifier builds a Verifier. An empty issuer accepts any issuer.
func NewVerifier(secret, issuer string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("auth: secret required")
	}
	return &Verifier{secret: []byte(secret), issuer: issuer, leeway: 30 * time.Second}, nil
}

// Verify parses raw and returns the principal it describes.
func (v *Verifier) Verify(raw string) (*shared.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID <= 0 {
		return nil, shared.ErrInvalidToken
	}
	return &shared.Principal{
		UserID:       claims.UserID,
		Name:         claims.Name,
		Capabilities: claims.Capabilities,
	}, nil
}
