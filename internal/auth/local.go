package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/dnugraha/chatportal/internal/storage"
)

// LocalAuthenticator checks local accounts with bcrypt password hashes.
// Used standalone in small deployments and as the fallback behind LDAP.
type LocalAuthenticator struct {
	users  storage.UserStore
	logger *zap.Logger
}

func NewLocalAuthenticator(users storage.UserStore, logger *zap.Logger) *LocalAuthenticator {
	return &LocalAuthenticator{users: users, logger: logger}
}

func (a *LocalAuthenticator) Authenticate(ctx context.Context, username, password string) (*Profile, error) {
	user, err := a.users.GetUser(ctx, username)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	// Directory-backed accounts carry no local hash.
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return &Profile{
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Department:  user.Department,
		IsAdmin:     user.IsAdmin,
	}, nil
}

// HashPassword produces the bcrypt hash stored for local accounts.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
