// Package frontmatter separates a leading YAML header from Markdown body content.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// Document is a Markdown file split into its decoded header and body.
type Document struct {
	// Header is nil when the file has no frontmatter block.
	Header map[string]any
	Body   string
}

// Split separates the raw frontmatter block (between leading --- delimiters)
// from the body. ok is false when no complete block is present, in which case
// the entire content is body.
func Split(data []byte) (header, body string, ok bool) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return "", string(data), false
	}

	rest := trimmed[len(delim):]
	// The opening delimiter must be alone on its line.
	if len(rest) > 0 && rest[0] != '\n' && rest[0] != '\r' {
		return "", string(data), false
	}
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return "", string(data), false
	}

	header = string(rest[:idx])
	afterDelim := rest[idx+1+len(delim):]
	body = strings.TrimLeft(string(afterDelim), "\r\n")
	return header, body, true
}

// Parse splits data and decodes the header as a YAML mapping.
// An empty header block decodes to an empty, non-nil map.
func Parse(data []byte) (*Document, error) {
	raw, body, ok := Split(data)
	if !ok {
		return &Document{Body: body}, nil
	}

	var header map[string]any
	if err := yaml.Unmarshal([]byte(raw), &header); err != nil {
		return nil, fmt.Errorf("frontmatter: decode yaml: %w", err)
	}
	if header == nil {
		header = map[string]any{}
	}
	return &Document{Header: header, Body: body}, nil
}
