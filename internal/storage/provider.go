// Package storage defines the database file-system abstraction.
package storage

import "github.com/pAIrprogio/synscript-sub000/internal/models"

// Provider is the interface for database file operations.
type Provider interface {
	// Root returns the absolute database root.
	Root() string
	// Glob returns every file under the root whose relative path matches at
	// least one pattern, sorted by relative path.
	Glob(patterns []string) ([]models.File, error)
	// Stat returns the handle of the file at path (relative to root).
	Stat(path string) (models.File, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to root).
	Delete(path string) error
	// Rel returns the slash-separated path of an absolute file path relative
	// to root, or an error wrapping apperr.ErrNotMember if it lies outside.
	Rel(path string) (string, error)
}
