// Package auth authenticates operators and issues the JWT session tokens
// the API accepts. Accounts are built in: one operator per viewer role,
// hashed with bcrypt at construction.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

var (
	// ErrInvalidCredentials covers both unknown users and wrong passwords so
	// responses never reveal which half failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrInvalidToken = errors.New("invalid token")
)

// Claims carried by every session token.
type Claims struct {
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// builtinUsers seeds one operator per viewer role.
var builtinUsers = []struct {
	username string
	password string
	role     models.Role
}{
	{"analyst", "pass1", models.RoleSecurity},
	{"specialist", "pass2", models.RoleEquipment},
	{"manager", "pass3", models.RoleFraud},
}

// Service verifies operator credentials and signs HS256 session tokens.
type Service struct {
	secret   []byte
	tokenTTL time.Duration

	byUsername map[string]models.User
}

// NewService hashes the built-in passwords and returns a ready service.
// A non-positive TTL falls back to 24 hours.
func NewService(secret string, tokenTTL time.Duration) (*Service, error) {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}

	s := &Service{
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		byUsername: make(map[string]models.User, len(builtinUsers)),
	}

	for _, u := range builtinUsers {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", u.username, err)
		}
		id, _ := uuid.NewV7()
		s.byUsername[u.username] = models.User{
			ID:           id.String(),
			Username:     u.username,
			PasswordHash: string(hash),
			Role:         u.role,
		}
	}
	return s, nil
}

// Session is the login result handed back to the API.
type Session struct {
	Token     string      `json:"token"`
	UserID    string      `json:"user_id"`
	Role      models.Role `json:"role"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Login verifies the credentials and issues a session token carrying the
// operator's role.
func (s *Service) Login(username, password string) (*Session, error) {
	user, ok := s.byUsername[username]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)
	claims := Claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "driftwatch",
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Session{
		Token:     token,
		UserID:    user.ID,
		Role:      user.Role,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate parses and verifies a session token, rejecting any signing
// method other than HMAC.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// User looks up a built-in account by username.
func (s *Service) User(username string) (models.User, bool) {
	u, ok := s.byUsername[username]
	return u, ok
}
