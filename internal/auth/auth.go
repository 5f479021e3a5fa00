package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrDirectoryDown      = errors.New("directory service unreachable")
)

// Profile is the normalized identity returned on a successful login,
// whatever the backing source was.
type Profile struct {
	Username    string
	Email       string
	DisplayName string
	FirstName   string
	LastName    string
	Department  string
	Groups      []string
	IsAdmin     bool
}

// Authenticator verifies a username/password pair.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*Profile, error)
}

// Chain tries authenticators in order: the directory service first,
// local accounts as the fallback. A directory outage falls through to
// local instead of locking everyone out.
type Chain struct {
	authenticators []Authenticator
	logger         *zap.Logger
}

func NewChain(logger *zap.Logger, authenticators ...Authenticator) *Chain {
	return &Chain{authenticators: authenticators, logger: logger}
}

func (c *Chain) Authenticate(ctx context.Context, username, password string) (*Profile, error) {
	var lastErr error = ErrInvalidCredentials
	for _, a := range c.authenticators {
		profile, err := a.Authenticate(ctx, username, password)
		if err == nil {
			return profile, nil
		}
		if errors.Is(err, ErrDirectoryDown) {
			c.logger.Warn("Authenticator unavailable, trying next", zap.Error(err))
		}
		lastErr = err
	}
	return nil, lastErr
}
