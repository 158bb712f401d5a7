// Package auth issues and checks the bearer credentials presented to the
// custodian. Tokens are HS256 JWTs signed with the custodian's own secret;
// the primary store's credentials are never accepted here.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/saltkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "saltkeeper-custodian"

// Claims are the registered claims plus the calling client's name, which
// only ends up in audit logs.
type Claims struct {
	jwt.RegisteredClaims
	ClientID string `json:"client_id"`
}

// GenerateToken mints a credential for clientID. A non-positive validity
// produces a token that never expires.
func GenerateToken(clientID string, secretKey []byte, validityDuration time.Duration) (string, error) {
	if clientID == "" {
		return "", fmt.Errorf("client id is required: %w", common.ErrorValidation)
	}
	if len(secretKey) == 0 {
		return "", fmt.Errorf("secret key is required: %w", common.ErrorValidation)
	}

	now := time.Now()
	rc := jwt.RegisteredClaims{
		Issuer:   issuer,
		Subject:  clientID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if validityDuration > 0 {
		rc.ExpiresAt = jwt.NewNumericDate(now.Add(validityDuration))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: rc, ClientID: clientID})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken validates tokenString and returns the client id. Every failure
// is reported as common.ErrInvalidToken so callers cannot tell an expired
// token from a forged one.
func ParseToken(tokenString string, secretKey []byte) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.ClientID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.ClientID, nil
}

// ErrNoBearer is returned by BearerToken when the header is absent or not
// of the Bearer scheme.
var ErrNoBearer = errors.New("missing bearer credential")

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if len(header) < len(common.BearerPrefix) || !strings.EqualFold(header[:len(common.BearerPrefix)], common.BearerPrefix) {
		return "", ErrNoBearer
	}
	tok := strings.TrimSpace(header[len(common.BearerPrefix):])
	if tok == "" {
		return "", ErrNoBearer
	}
	return tok, nil
}

// Authenticate combines BearerToken and ParseToken.
func Authenticate(header string, secretKey []byte) (string, error) {
	tok, err := BearerToken(header)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	return ParseToken(tok, secretKey)
}
