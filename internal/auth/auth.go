// Package auth is the identity provider. Users sign in with a handle; the
// handle is turned into a credential key with a synthetic domain, which is
// never used as a real address.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"kindred/backend/internal/config"
	"kindred/backend/internal/models"
	"kindred/backend/internal/storage"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidHandle      = errors.New("handle must be 3-32 letters, digits or underscores")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
	ErrHandleTaken        = errors.New("handle already taken")
	ErrInvalidCredentials = errors.New("invalid handle or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenRevoked       = errors.New("token revoked")
)

const (
	minHandle      = 3
	maxHandle      = 32
	minPassword    = 8
	maxPassword    = 72 // bcrypt input limit, in bytes
	maxDisplayName = 40
	issuer         = "kindred"
)

// Claims are carried in every token.
type Claims struct {
	UserID string `json:"uid"`
	Name   string `json:"name"`
	Admin  bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Session is returned by sign-up, sign-in and profile updates.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

type Service struct {
	Storage storage.Storage
	Revoker Revoker

	secret  []byte
	ttl     time.Duration
	domain  string
	isAdmin func(userID string) bool
	cost    int
	now     func() time.Time
}

func NewService(s storage.Storage, revoker Revoker, cfg *config.Config) *Service {
	return &Service{
		Storage: s,
		Revoker: revoker,
		secret:  []byte(cfg.JWTSecret),
		ttl:     cfg.TokenTTL,
		domain:  cfg.CredentialDomain,
		isAdmin: cfg.IsAdmin,
		cost:    bcrypt.DefaultCost,
		now:     time.Now,
	}
}

// SanitizeHandle lowercases the handle and drops every character outside
// [a-z0-9_].
func SanitizeHandle(handle string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(handle)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) < minHandle || len(out) > maxHandle {
		return "", ErrInvalidHandle
	}
	return out, nil
}

func (s *Service) credentialKey(handle string) (string, error) {
	h, err := SanitizeHandle(handle)
	if err != nil {
		return "", err
	}
	return h + "@" + s.domain, nil
}

// NormalizeDisplayName trims the name, caps its length and falls back to
// the default placeholder.
func NormalizeDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return config.DefaultDisplayName
	}
	if utf8.RuneCountInString(name) > maxDisplayName {
		name = string([]rune(name)[:maxDisplayName])
	}
	return name
}

func (s *Service) SignUp(ctx context.Context, handle, password, displayName string) (*Session, error) {
	key, err := s.credentialKey(handle)
	if err != nil {
		return nil, err
	}
	if len(password) < minPassword {
		return nil, ErrWeakPassword
	}
	if len(password) > maxPassword {
		return nil, ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		CredentialKey: key,
		PasswordHash:  string(hash),
		DisplayName:   NormalizeDisplayName(displayName),
	}
	if err := s.Storage.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrHandleTaken
		}
		return nil, err
	}
	log.Printf("INFO: New account %s", user.ID)
	return s.issue(user)
}

func (s *Service) SignIn(ctx context.Context, handle, password string) (*Session, error) {
	key, err := s.credentialKey(handle)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	user, err := s.Storage.GetUserByCredential(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

// SignOut revokes the token until it would have expired.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	until := s.now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	return s.Revoker.Revoke(ctx, claims.ID, until)
}

// UpdateDisplayName stores the new name and returns a token that carries it.
func (s *Service) UpdateDisplayName(ctx context.Context, userID, name string) (*Session, error) {
	name = NormalizeDisplayName(name)
	if err := s.Storage.UpdateDisplayName(ctx, userID, name); err != nil {
		return nil, err
	}
	user, err := s.Storage.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Authenticate validates a token and returns the caller's identity.
func (s *Service) Authenticate(ctx context.Context, token string) (models.Identity, error) {
	claims, err := s.parse(token)
	if err != nil {
		return models.Identity{}, err
	}
	revoked, err := s.Revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		log.Printf("WARNING: Revocation check failed for token %s: %v", claims.ID, err)
	}
	if revoked {
		return models.Identity{}, ErrTokenRevoked
	}
	return models.Identity{UserID: claims.UserID, DisplayName: claims.Name, Admin: claims.Admin}, nil
}

func (s *Service) issue(user *models.User) (*Session, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		UserID: user.ID,
		Name:   user.DisplayName,
		Admin:  s.isAdmin != nil && s.isAdmin(user.ID),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{Token: signed, ExpiresAt: exp, User: *user}, nil
}

func (s *Service) parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
