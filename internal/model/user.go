package model

import "time"

// User is a registered account.  PasswordHash and RefreshTokenHash are
// never serialised; a record loaded through a profile read has both empty.
//
// Fields:
//
//	ID               - store identifier (ObjectID hex for Mongo, uuid for MySQL).
//	Username         - unique, lower-cased handle.
//	Email            - unique, lower-cased address.
//	FullName         - display name.
//	Avatar           - URL of the profile image, always set.
//	CoverImage       - URL of the channel cover image, empty when absent.
//	PasswordHash     - bcrypt hash.
//	RefreshTokenHash - SHA-256 hex digest of the one active refresh token, empty when signed out.
type User struct {
	ID               string    `json:"_id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	FullName         string    `json:"fullName"`
	Avatar           string    `json:"avatar"`
	CoverImage       string    `json:"coverImage"`
	PasswordHash     string    `json:"-"`
	RefreshTokenHash string    `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Sanitized returns a copy without secret and session fields.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	u.RefreshTokenHash = ""
	return u
}

// NewUser carries the fields needed to create a user.  Password is the
// plain text value; stores hash it before the record is committed.
type NewUser struct {
	Username   string
	Email      string
	FullName   string
	Avatar     string
	CoverImage string
	Password   string
}
