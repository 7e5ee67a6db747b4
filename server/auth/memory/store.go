// memory based authenticator for testing purposes
package memory

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/greatdennis/ccs-calendarserver/access"
	"github.com/greatdennis/ccs-calendarserver/principal"
	"github.com/greatdennis/ccs-calendarserver/server/auth"
)

// Store implements auth.Authenticator over an in-memory credential map,
// resolving authenticated users to principals through the provisioning
// hierarchy.
type Store struct {
	mu        sync.RWMutex
	passwords map[string]string // username -> password
	prov      *principal.Provisioning
	logger    *slog.Logger
}

// New creates a new in-memory authenticator resolving principals against
// the given hierarchy.
func New(prov *principal.Provisioning, opts ...Option) *Store {
	s := &Store{
		passwords: make(map[string]string),
		prov:      prov,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Option represents a configuration option for the Store
type Option func(*Store)

// WithLogger sets the logger for the store
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// AddUser adds credentials for a user
func (s *Store) AddUser(username, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.passwords[username]; exists {
		s.logger.Warn("failed to add user: already exists",
			"username", username)
		return fmt.Errorf("user already exists: %s", username)
	}

	s.passwords[username] = password
	return nil
}

// Authenticate implements auth.Authenticator
func (s *Store) Authenticate(ctx context.Context, creds auth.Credentials) (*access.Principal, error) {
	s.mu.RLock()
	password, exists := s.passwords[creds.Username]
	s.mu.RUnlock()

	if !exists {
		s.logger.Info("authentication failed: user not found",
			"username", creds.Username)
		return nil, &auth.Error{
			Type:    auth.ErrInvalidCredentials,
			Message: "invalid username or password",
		}
	}

	// Constant-time comparison to prevent timing attacks
	if subtle.ConstantTimeCompare([]byte(password), []byte(creds.Password)) != 1 {
		s.logger.Info("authentication failed: invalid password",
			"username", creds.Username)
		return nil, &auth.Error{
			Type:    auth.ErrInvalidCredentials,
			Message: "invalid username or password",
		}
	}

	res, err := s.prov.PrincipalForUser(creds.Username)
	if err != nil {
		return nil, &auth.Error{
			Type:    auth.ErrUnauthorized,
			Message: "principal lookup failed",
			Err:     err,
		}
	}
	user, ok := res.Get()
	if !ok {
		s.logger.Info("authentication failed: no principal for user",
			"username", creds.Username)
		return nil, &auth.Error{
			Type:    auth.ErrUnauthorized,
			Message: "no principal for user",
		}
	}

	return &access.Principal{URL: user.PrincipalURL()}, nil
}
