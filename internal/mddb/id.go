package mddb

import (
	"path"
	"regexp"
	"strings"
)

var orderPrefixRe = regexp.MustCompile(`^\d+\.`)

// ResolveID derives an entry's hierarchical id and optional type tag from its
// slash-separated path relative to the database root.
//
// Numeric ordering prefixes ("0.intro") are stripped from every segment. A
// "name.tag.md" file yields type "tag". When the file's base name repeats its
// folder name the folder segment is dropped, so "buttons/buttons.md" is
// "buttons" while "buttons/variants.md" is "buttons/variants".
func ResolveID(relPath, sep string) (id, typ string) {
	relPath = path.Clean(strings.TrimPrefix(relPath, "/"))

	var dirs []string
	if dir := path.Dir(relPath); dir != "." {
		for _, seg := range strings.Split(dir, "/") {
			dirs = append(dirs, stripOrder(seg))
		}
	}

	name := strings.TrimSuffix(path.Base(relPath), path.Ext(relPath))
	name = stripOrder(name)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name, typ = name[:i], name[i+1:]
	}

	if n := len(dirs); n > 0 && dirs[n-1] == name {
		dirs = dirs[:n-1]
	}

	segments := make([]string, 0, len(dirs)+1)
	for _, s := range append(dirs, name) {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return strings.Join(segments, sep), typ
}

func stripOrder(s string) string {
	return orderPrefixRe.ReplaceAllString(s, "")
}
