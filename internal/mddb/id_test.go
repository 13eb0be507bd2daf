package mddb

import "testing"

func TestResolveID(t *testing.T) {
	cases := []struct {
		rel     string
		sep     string
		wantID  string
		wantTyp string
	}{
		{"a.md", "/", "a", ""},
		{"a/b.md", "/", "a/b", ""},
		{"buttons/buttons.md", "/", "buttons", ""},
		{"buttons/variants.md", "/", "buttons/variants", ""},
		{"buttons/variants.ui.md", "/", "buttons/variants", "ui"},
		{"0.intro/0.intro.md", "/", "intro", ""},
		{"0.intro/1.setup.md", "/", "intro/setup", ""},
		{"10.guide.rule.md", "/", "guide", "rule"},
		{"docs/buttons/buttons.ui.md", "/", "docs/buttons", "ui"},
		{"a/b/c.md", ".", "a.b.c", ""},
		{"a/b/c.md", "::", "a::b::c", ""},
		{"12.md", "/", "12", ""},
	}
	for _, tc := range cases {
		t.Run(tc.rel, func(t *testing.T) {
			id, typ := ResolveID(tc.rel, tc.sep)
			if id != tc.wantID || typ != tc.wantTyp {
				t.Errorf("ResolveID(%q, %q) = (%q, %q), want (%q, %q)", tc.rel, tc.sep, id, typ, tc.wantID, tc.wantTyp)
			}
		})
	}
}
