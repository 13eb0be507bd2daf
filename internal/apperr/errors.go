// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrNotMember     = errors.New("file is not part of the database")
	ErrInvalidEntry  = errors.New("invalid entry")
	ErrDuplicateID   = errors.New("duplicate entry id")
	ErrInvalidInput  = errors.New("invalid input")
	ErrAlreadyExists = errors.New("already exists")
)
