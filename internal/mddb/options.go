package mddb

import (
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/pAIrprogio/synscript-sub000/internal/query"
	"github.com/pAIrprogio/synscript-sub000/internal/schema"
)

// DefaultGlobs selects every markdown file under the root.
var DefaultGlobs = []string{"**/*.md"}

// DefaultSeparator joins id segments.
const DefaultSeparator = "/"

// Matcher evaluates query expressions. *query.Engine satisfies it.
type Matcher interface {
	Match(expr query.Expr, input any, opts query.Options) (bool, error)
	ClearCache()
}

// CacheKeyFunc maps a match input to its Match Cache key.
type CacheKeyFunc func(input any) (string, error)

// JSONCacheKey keys inputs by their canonical JSON encoding.
func JSONCacheKey(input any) (string, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

type config struct {
	globs     []string
	separator string
	schema    schema.Validator
	matcher   Matcher
	cacheKey  CacheKeyFunc
	logger    *slog.Logger
}

func defaultConfig() config {
	return config{
		globs:     slices.Clone(DefaultGlobs),
		separator: DefaultSeparator,
		schema:    schema.Default(),
		matcher:   query.NewEngine(),
		logger:    slog.Default(),
	}
}

// Option configures a DB.
type Option func(*config)

// WithGlobs sets the patterns selecting entry files, relative to the root.
func WithGlobs(patterns ...string) Option {
	return func(c *config) {
		c.globs = slices.Clone(patterns)
	}
}

// WithSeparator sets the string joining id segments.
func WithSeparator(sep string) Option {
	return func(c *config) {
		c.separator = sep
	}
}

// WithSchema sets the frontmatter validator.
func WithSchema(v schema.Validator) Option {
	return func(c *config) {
		c.schema = v
	}
}

// WithMatcher sets the query engine.
func WithMatcher(m Matcher) Option {
	return func(c *config) {
		c.matcher = m
	}
}

// WithCacheKey enables the Match Cache keyed by fn. A nil fn disables it.
func WithCacheKey(fn CacheKeyFunc) Option {
	return func(c *config) {
		c.cacheKey = fn
	}
}

// WithLogger sets the logger used for load diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
