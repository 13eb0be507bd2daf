package mddb

import (
	"fmt"

	"github.com/pAIrprogio/synscript-sub000/internal/apperr"
)

// LoadError reports a file that could not be turned into an entry.
// It matches apperr.ErrInvalidEntry as well as the underlying cause.
type LoadError struct {
	// Path is relative to the database root.
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("mddb: invalid entry %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() []error {
	return []error{apperr.ErrInvalidEntry, e.Err}
}

// MatchError reports a query evaluation failure for one entry.
type MatchError struct {
	ID  string
	Err error
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("mddb: match %s: %v", e.ID, e.Err)
}

func (e *MatchError) Unwrap() error {
	return e.Err
}
