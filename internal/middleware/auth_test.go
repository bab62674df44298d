package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch-systems/driftwatch/internal/auth"
	"github.com/driftwatch-systems/driftwatch/internal/models"
)

func TestRequireAuthPutsUserInContext(t *testing.T) {
	svc, err := auth.NewService("test-secret", time.Hour)
	require.NoError(t, err)

	session, err := svc.Login("analyst", "pass1")
	require.NoError(t, err)

	var got models.User
	handler := NewAuth(svc).RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		u, ok := CurrentUser(r.Context())
		require.True(t, ok)
		got = u
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, session.UserID, got.ID)
	assert.Equal(t, "analyst", got.Username)
	assert.Equal(t, models.RoleSecurity, got.Role)
}

func TestRequireAuthRejections(t *testing.T) {
	svc, err := auth.NewService("test-secret", time.Hour)
	require.NoError(t, err)

	handler := NewAuth(svc).RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic YWI6Y2Q="},
		{"malformed", "Bearer"},
		{"bad token", "Bearer not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestCurrentUserWithoutAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := CurrentUser(req.Context())
	assert.False(t, ok)
}
