package auth

import (
	"context"
	"errors"
	"testing"

	"molva/internal/models"
)

type fakeCredentialsStore struct {
	users  map[string]models.User // email -> user
	hashes map[string]string      // email -> bcrypt hash
}

func newFakeCredentialsStore() *fakeCredentialsStore {
	return &fakeCredentialsStore{
		users:  make(map[string]models.User),
		hashes: make(map[string]string),
	}
}

func (s *fakeCredentialsStore) CreateUser(user models.User, passwordHash string) error {
	s.users[user.Email] = user
	s.hashes[user.Email] = passwordHash
	return nil
}

func (s *fakeCredentialsStore) GetUserByEmail(email string) (models.User, error) {
	user, ok := s.users[email]
	if !ok {
		return models.User{}, models.ErrNotFound
	}
	return user, nil
}

func (s *fakeCredentialsStore) CredentialsByEmail(email string) (models.User, string, error) {
	user, ok := s.users[email]
	if !ok {
		return models.User{}, "", models.ErrNotFound
	}
	return user, s.hashes[email], nil
}

func TestRegisterAndLogin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := NewService(ctx, Config{}, newFakeCredentialsStore())

	user, err := service.Register("alice", "alice@example.com", "secret")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.ID == "" || user.Username != "alice" {
		t.Errorf("unexpected user: %+v", user)
	}

	if _, err := service.Register("alice2", "alice@example.com", "other"); !errors.Is(err, ErrUserExists) {
		t.Errorf("expected ErrUserExists, got %v", err)
	}

	if _, err := service.Register("", "x@example.com", "secret"); !models.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}

	loggedIn, token, err := service.Login("alice@example.com", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if loggedIn.ID != user.ID || token == "" {
		t.Errorf("unexpected login result: %+v token=%q", loggedIn, token)
	}

	userID, err := service.GetUserID(token)
	if err != nil || userID != user.ID {
		t.Errorf("expected %s, got %s err=%v", user.ID, userID, err)
	}
}

func TestLoginFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := NewService(ctx, Config{}, newFakeCredentialsStore())

	if _, err := service.Register("alice", "alice@example.com", "secret"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Unknown users and wrong passwords look the same
	if _, _, err := service.Login("nobody@example.com", "secret"); !errors.Is(err, ErrLoginFailed) {
		t.Errorf("expected ErrLoginFailed, got %v", err)
	}
	if _, _, err := service.Login("alice@example.com", "wrong"); !errors.Is(err, ErrLoginFailed) {
		t.Errorf("expected ErrLoginFailed, got %v", err)
	}
}

func TestLogoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	service := NewService(ctx, Config{}, newFakeCredentialsStore())

	if _, err := service.Register("alice", "alice@example.com", "secret"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	_, token, err := service.Login("alice@example.com", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	service.Logoff(token)

	if _, err := service.GetUserID(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken after logoff, got %v", err)
	}
}
