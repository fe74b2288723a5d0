// Package auth issues opaque bearer tokens after verifying credentials.
// It sits outside the delivery core: handlers only ever ask it to resolve a
// token to a user identity.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"molva/internal/models"

	"github.com/c-pro/geche"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const DefaultTokenExpiry = 24 * time.Hour

var (
	ErrUserExists   = errors.New("user already exists")
	ErrLoginFailed  = errors.New("invalid email or password")
	ErrInvalidToken = errors.New("invalid or expired token")
)

type credentialsStore interface {
	CreateUser(user models.User, passwordHash string) error
	GetUserByEmail(email string) (models.User, error)
	CredentialsByEmail(email string) (models.User, string, error)
}

type Config struct {
	TokenExpiry time.Duration
}

type Service struct {
	store      credentialsStore
	liveTokens geche.Geche[string, string] // token -> userID
}

func NewService(ctx context.Context, cfg Config, store credentialsStore) *Service {
	expiry := cfg.TokenExpiry
	if expiry == 0 {
		expiry = DefaultTokenExpiry
	}
	return &Service{
		store:      store,
		liveTokens: geche.NewMapTTLCache[string, string](ctx, expiry, time.Minute),
	}
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(username, email, password string) (models.User, error) {
	if username == "" || email == "" || password == "" {
		return models.User{}, models.Validationf("username, email and password are required")
	}
	if _, err := s.store.GetUserByEmail(email); err == nil {
		return models.User{}, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		ID:       uuid.NewString(),
		Username: username,
		Email:    email,
		LastSeen: time.Now(),
	}
	if err := s.store.CreateUser(user, string(hash)); err != nil {
		return models.User{}, models.Upstream("create user", err)
	}
	return user, nil
}

// Login verifies the credentials and returns a live token for the user.
func (s *Service) Login(email, password string) (models.User, string, error) {
	user, hash, err := s.store.CredentialsByEmail(email)
	if err != nil {
		// Same answer for unknown users and wrong passwords.
		return models.User{}, "", ErrLoginFailed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return models.User{}, "", ErrLoginFailed
	}

	token, err := generateToken()
	if err != nil {
		slog.Error("token generation failed", "user_id", user.ID, "error", err)
		return models.User{}, "", fmt.Errorf("generate token: %w", err)
	}
	s.liveTokens.Set(token, user.ID)
	return user, token, nil
}

// GetUserID resolves a token to the authenticated user identity.
func (s *Service) GetUserID(token string) (string, error) {
	userID, err := s.liveTokens.Get(token)
	if err != nil {
		return "", ErrInvalidToken
	}
	return userID, nil
}

// Logoff invalidates a token.
func (s *Service) Logoff(token string) {
	_ = s.liveTokens.Del(token)
}

func generateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
