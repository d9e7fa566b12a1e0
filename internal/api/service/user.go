package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/learninpublic/scheduler/internal/api/domain"
	"github.com/learninpublic/scheduler/internal/api/store"
	"github.com/learninpublic/scheduler/pkg/cryptox"
	"github.com/learninpublic/scheduler/pkg/idx"
	"github.com/learninpublic/scheduler/pkg/slogx"
)

var (
	ErrEmailTaken = errors.New("email_taken")

	// ErrInvalidCredentials covers both unknown email and wrong password.
	// The split is logged internally but never surfaced to the caller.
	ErrInvalidCredentials = errors.New("invalid_credentials")
)

type UserService struct {
	Store store.Store
}

// Register creates a new user with an argon2 password hash.
func (s *UserService) Register(ctx context.Context, email, username, password string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		Username:     strings.TrimSpace(username),
		PasswordHash: hash,
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}
	return s.Store.Users().GetUserByID(ctx, user.ID)
}

// Login verifies the email/password pair. Unknown email and bad password
// both come back as ErrInvalidCredentials; store failures pass through so
// an outage never masquerades as a rejected login.
func (s *UserService) Login(ctx context.Context, email, password string) (domain.User, error) {
	l := slogx.FromContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("login failed: unknown email")
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		l.Info("login failed: password mismatch", slog.String("user_id", user.ID))
		return domain.User{}, ErrInvalidCredentials
	}

	return user, nil
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}
