package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/videotube-api/internal/model"
)

// UserRepository is the credential store.  Implementations hash the
// password on Create and UpdatePassword, enforce unique usernames and
// emails, and apply refresh-token writes atomically to a single record.
type UserRepository interface {
	// FindByUsernameOrEmail returns the first user whose username or email
	// matches one of the non-empty arguments.
	FindByUsernameOrEmail(ctx context.Context, username, email string) (model.User, error)
	FindByID(ctx context.Context, id string) (model.User, error)
	// FindProfileByID is FindByID with the password and refresh token left out.
	FindProfileByID(ctx context.Context, id string) (model.User, error)
	// Create stores u and returns the new ID.
	Create(ctx context.Context, u model.NewUser) (string, error)
	// SetRefreshToken overwrites the stored digest; an empty hash clears it.
	SetRefreshToken(ctx context.Context, id, tokenHash string) error
	// RotateRefreshToken replaces oldHash with newHash only if oldHash is
	// still the stored digest.  It returns ErrNotFound otherwise.
	RotateRefreshToken(ctx context.Context, id, oldHash, newHash string) error
	// UpdatePassword re-hashes the password and clears the refresh token.
	UpdatePassword(ctx context.Context, id, password string) error
}

// normalizeIdentity lower-cases and trims lookup keys the same way they are
// stored.
func normalizeIdentity(username, email string) (string, string) {
	return strings.ToLower(strings.TrimSpace(username)), strings.ToLower(strings.TrimSpace(email))
}
