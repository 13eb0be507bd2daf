package mddb

import (
	"strings"

	"github.com/pAIrprogio/synscript-sub000/internal/models"
	"github.com/pAIrprogio/synscript-sub000/internal/query"
)

// Entry is one loaded markdown file. Entries are never mutated after load.
type Entry struct {
	ID string `json:"id"`
	// Type is the tag from a "name.tag.md" file name, empty when absent.
	Type string `json:"type,omitempty"`
	// Content is the trimmed body, empty when the body is blank.
	Content string      `json:"content,omitempty"`
	File    models.File `json:"file"`
	Query   query.Expr  `json:"query"`
	// Fields holds the validated frontmatter without the query key.
	Fields map[string]any `json:"fields,omitempty"`
}

// HasContent reports whether the entry has a non-blank body.
func (e *Entry) HasContent() bool {
	return strings.TrimSpace(e.Content) != ""
}

// Segments splits the entry id on sep.
func (e *Entry) Segments(sep string) []string {
	return strings.Split(e.ID, sep)
}
