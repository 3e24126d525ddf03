// Package auth checks dashboard logins against per-user bcrypt hashes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/banshee-data/rutting.report/internal/db"
)

// DefaultCost is the bcrypt work factor for new hashes.
const DefaultCost = 12

// MinPasswordLength is the shortest password SetPassword accepts.
const MinPasswordLength = 8

// ErrInvalidCredentials is returned for an unknown user or a wrong
// password alike, so a caller cannot tell which one failed.
var ErrInvalidCredentials = errors.New("user not known or password incorrect")

// UserStore is the persistence Authenticator needs. *db.DB satisfies it.
type UserStore interface {
	PasswordHash(ctx context.Context, username string) ([]byte, error)
	PutUser(ctx context.Context, username string, hash []byte) error
}

// Authenticator verifies and sets passwords.
type Authenticator struct {
	store UserStore
	cost  int
	// dummy is compared against for unknown users so their failures cost
	// the same bcrypt time as a wrong password.
	dummy []byte
}

// NewAuthenticator returns an Authenticator hashing at cost; pass
// DefaultCost outside tests.
func NewAuthenticator(store UserStore, cost int) (*Authenticator, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte("rutting-dummy-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash dummy password: %w", err)
	}
	return &Authenticator{store: store, cost: cost, dummy: dummy}, nil
}

// Verify returns nil when password matches username's stored hash and
// ErrInvalidCredentials when it does not or the user is unknown. Store
// failures are returned as they are.
func (a *Authenticator) Verify(ctx context.Context, username, password string) error {
	hash, err := a.store.PasswordHash(ctx, username)
	switch {
	case errors.Is(err, db.ErrUserNotFound):
		_ = bcrypt.CompareHashAndPassword(a.dummy, []byte(password))
		return ErrInvalidCredentials
	case err != nil:
		return err
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// SetPassword creates username or replaces its password.
func (a *Authenticator) SetPassword(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return a.store.PutUser(ctx, username, hash)
}
