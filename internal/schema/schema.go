// Package schema validates decoded frontmatter against declared key rules.
package schema

import (
	"fmt"
	"maps"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/pAIrprogio/synscript-sub000/internal/query"
)

// QueryKey is the frontmatter key holding an entry's query expression.
const QueryKey = "query"

// Validator validates a raw frontmatter mapping and returns the validated data.
type Validator interface {
	Validate(raw map[string]any) (map[string]any, error)
}

// Schema is an immutable set of ozzo-validation key rules over a frontmatter
// mapping. Keys not named by a rule are kept unless the schema is strict.
type Schema struct {
	keys     []*validation.KeyRules
	defaults map[string]any
	strict   bool
}

var _ Validator = (*Schema)(nil)

// New returns a Schema enforcing keys.
func New(keys ...*validation.KeyRules) *Schema {
	return &Schema{keys: keys}
}

// Default accepts any frontmatter and checks that "query", when present,
// is a well-formed expression.
func Default() *Schema {
	return New(validation.Key(QueryKey, QueryRule()).Optional())
}

// WithDefaults returns a copy of s that fills missing keys from defaults
// before validating.
func (s *Schema) WithDefaults(defaults map[string]any) *Schema {
	c := *s
	c.defaults = maps.Clone(defaults)
	return &c
}

// Strict returns a copy of s that rejects keys without a rule.
func (s *Schema) Strict() *Schema {
	c := *s
	c.strict = true
	return &c
}

// Validate applies defaults and rules to a copy of raw. A nil raw mapping is
// validated as an empty one.
func (s *Schema) Validate(raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(raw)+len(s.defaults))
	for k, v := range s.defaults {
		out[k] = v
	}
	maps.Copy(out, raw)

	rule := validation.Map(s.keys...)
	if !s.strict {
		rule = rule.AllowExtraKeys()
	}
	if err := validation.Validate(out, rule); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return out, nil
}

// QueryRule validates that a value is a well-formed query expression.
func QueryRule() validation.Rule {
	return validation.By(func(v any) error {
		return query.Validate(v)
	})
}
