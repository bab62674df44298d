package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/driftwatch-systems/driftwatch/internal/auth"
	"github.com/driftwatch-systems/driftwatch/internal/models"
)

const (
	UserIDKey   = contextKey("user-id")
	UsernameKey = contextKey("username")
	RoleKey     = contextKey("role")
)

// Auth guards handlers behind bearer-token authentication.
type Auth struct {
	service *auth.Service
}

func NewAuth(service *auth.Service) *Auth {
	return &Auth{service: service}
}

// RequireAuth validates the Authorization header and stores the caller's
// identity in the request context.
func (a *Auth) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
			return
		}

		claims, err := a.service.Validate(parts[1])
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
		ctx = context.WithValue(ctx, UsernameKey, claims.Username)
		ctx = context.WithValue(ctx, RoleKey, claims.Role)

		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// CurrentUser rebuilds the authenticated operator from the request context.
func CurrentUser(ctx context.Context) (models.User, bool) {
	id, ok := ctx.Value(UserIDKey).(string)
	if !ok || id == "" {
		return models.User{}, false
	}
	username, _ := ctx.Value(UsernameKey).(string)
	role, _ := ctx.Value(RoleKey).(models.Role)
	return models.User{ID: id, Username: username, Role: role}, true
}
