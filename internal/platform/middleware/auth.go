package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	dErrors "habita/pkg/domain-errors"
	"habita/pkg/platform/httputil"
)

// Role is the caller's role as asserted by the identity provider.
type Role string

const (
	RoleAdmin           Role = "admin"
	RoleProvider        Role = "provider"
	RoleCustomer        Role = "customer"
	RoleUnauthenticated Role = "unauthenticated"
)

// TokenValidator defines the interface for validating bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims represents the identity contract: who the caller is and what role
// the identity provider granted them.
type Claims struct {
	UserID string
	Role   Role
}

// Context keys for storing authenticated caller information
type contextKeyUserID struct{}
type contextKeyRole struct{}

var (
	ContextKeyUserID = contextKeyUserID{}
	ContextKeyRole   = contextKeyRole{}
)

// GetUserID retrieves the authenticated user ID from the context.
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(ContextKeyUserID).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetRole retrieves the caller role from the context, defaulting to
// unauthenticated when no auth middleware ran.
func GetRole(ctx context.Context) Role {
	role, ok := ctx.Value(ContextKeyRole).(Role)
	if !ok {
		return RoleUnauthenticated
	}
	return role
}

// WithIdentity stores caller identity on the context. Exported for tests and
// for the auth middleware below.
func WithIdentity(ctx context.Context, userID string, role Role) context.Context {
	ctx = context.WithValue(ctx, ContextKeyUserID, userID)
	return context.WithValue(ctx, ContextKeyRole, role)
}

// RequireAuth validates the bearer token and stores identity on the context.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, claims.UserID, claims.Role)))
		})
	}
}

// RequireRole gates a route to callers holding one of the given roles. Must be
// mounted after RequireAuth.
func RequireRole(logger *slog.Logger, roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if _, ok := allowed[GetRole(ctx)]; !ok {
				logger.WarnContext(ctx, "forbidden - insufficient role",
					"role", string(GetRole(ctx)),
					"request_id", GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
