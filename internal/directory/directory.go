// Package directory authenticates users against an identity directory and
// resolves the profile a session token is issued for.
package directory

import (
	"context"
	"errors"
)

var (
	// ErrInvalidCredentials is returned when the directory rejects the bind.
	ErrInvalidCredentials = errors.New("LDAP authentication failed")
	// ErrUserNotFound is returned when the bind succeeds but no entry matches.
	ErrUserNotFound = errors.New("User not found")
	// ErrUnavailable wraps transport failures talking to the directory.
	ErrUnavailable = errors.New("directory unavailable")
)

// Identity is the directory profile of an authenticated user.
type Identity struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// Authenticator verifies a username/password pair.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*Identity, error)
}
