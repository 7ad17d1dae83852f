// Package repository holds the user stores.  The sentinel errors below let
// the service layer tell missing records and uniqueness violations apart
// from infrastructure failures regardless of the backing database.
package repository

import "errors"

// ErrNotFound is returned when no record matches a lookup, or when a
// conditional update matched nothing.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a write violates the unique username or
// email constraint.
var ErrDuplicate = errors.New("user already exists")
