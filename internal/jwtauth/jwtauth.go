// Package jwtauth implements the identity/role port. habita does not run an
// identity provider; it validates HS256 tokens issued elsewhere and trusts the
// role claim they carry.
package jwtauth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"habita/internal/platform/middleware"
	dErrors "habita/pkg/domain-errors"
)

// Claims are the token claims habita understands.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Service handles token validation (and issuance for tests and local dev).
type Service struct {
	signingKey []byte
	issuer     string
}

func New(signingKey string, issuer string) *Service {
	return &Service{signingKey: []byte(signingKey), issuer: issuer}
}

var validRoles = map[middleware.Role]struct{}{
	middleware.RoleAdmin:    {},
	middleware.RoleProvider: {},
	middleware.RoleCustomer: {},
}

// ValidateToken parses and verifies a token, returning the caller identity.
// Unknown or missing roles are rejected rather than defaulted: a token without
// a recognized role grants nothing.
func (s *Service) ValidateToken(tokenString string) (*middleware.Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}
	if !token.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if claims.UserID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token missing user_id claim")
	}
	role := middleware.Role(claims.Role)
	if _, ok := validRoles[role]; !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token missing or unknown role claim")
	}
	return &middleware.Claims{UserID: claims.UserID, Role: role}, nil
}

// IssueToken mints a token for the given identity. Used by tests and local
// tooling; production tokens come from the upstream identity provider.
func (s *Service) IssueToken(userID string, role middleware.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.signingKey)
}
