// Package models defines the value types shared by storage and the entry database.
package models

import "time"

// File is a handle on a markdown file inside the database root.
type File struct {
	// Path is the absolute, OS-native path.
	Path string `json:"path"`
	// RelPath is relative to the database root and always slash-separated.
	RelPath   string    `json:"rel_path"`
	UpdatedAt time.Time `json:"updated_at"`
}
