package auth

import (
	"context"
	"fmt"

	"github.com/greatdennis/ccs-calendarserver/access"
)

// Credentials represents authentication credentials
type Credentials struct {
	Username string
	Password string
}

// ErrorType represents the type of authentication error
type ErrorType string

const (
	ErrInvalidCredentials ErrorType = "invalid_credentials"
	ErrUnauthorized       ErrorType = "unauthorized"
)

// Error represents an authentication-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Authenticator defines the interface for authentication providers.
// Authorization is not its job: privilege checks against resources happen
// in the access evaluator.
type Authenticator interface {
	// Authenticate validates credentials and returns the authenticated
	// principal if successful
	Authenticate(ctx context.Context, creds Credentials) (*access.Principal, error)
}
