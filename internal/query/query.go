// Package query evaluates declarative, document-shaped predicates against
// arbitrary input values.
//
// An expression is either a boolean literal (true matches everything, false
// matches nothing) or a document mapping dotted field paths to conditions:
//
//	{"env": "prod", "tags": {"$in": ["go", "rust"]}, "$or": [{"x": {"$gt": 1}}, {"y": null}]}
//
// Supported operators: $eq $ne $gt $gte $lt $lte $in $nin $exists $regex
// $options $size $all $elemMatch $not, and the logical $and $or $nor.
package query

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInvalidQuery is returned for malformed expressions.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrTypeMismatch is returned when validation is enabled and an ordered
	// comparison is attempted between incompatible values.
	ErrTypeMismatch = errors.New("type mismatch")
)

// Expr is a query expression. See the package documentation for its shape.
type Expr = any

// Never matches no input. It is the default expression of an entry that
// declares none.
var Never Expr = false

// Always matches every input.
var Always Expr = true

// Options controls a single evaluation.
type Options struct {
	// SkipValidation disables input/operand type checks; incompatible
	// comparisons evaluate to false instead of failing.
	SkipValidation bool
	// UseCache memoizes the compiled expression.
	UseCache bool
}

// Engine compiles and evaluates expressions. It is safe for concurrent use.
type Engine struct {
	mu    sync.RWMutex
	cache map[string]predicate
}

// NewEngine returns an Engine with an empty compile cache.
func NewEngine() *Engine {
	return &Engine{cache: make(map[string]predicate)}
}

// Match reports whether input satisfies expr.
func (e *Engine) Match(expr Expr, input any, opts Options) (bool, error) {
	p, err := e.predicate(expr, opts.UseCache)
	if err != nil {
		return false, err
	}
	in, err := normalize(input)
	if err != nil {
		return false, fmt.Errorf("query: normalize input: %w", err)
	}
	return p(in, !opts.SkipValidation)
}

// Validate checks that expr is well formed without evaluating it.
func (e *Engine) Validate(expr Expr) error {
	_, err := compile(expr)
	return err
}

// ClearCache drops every memoized compiled expression.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	e.cache = make(map[string]predicate)
	e.mu.Unlock()
}

func (e *Engine) cached() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

func (e *Engine) predicate(expr Expr, useCache bool) (predicate, error) {
	if !useCache {
		return compile(expr)
	}
	key, ok := cacheKey(expr)
	if !ok {
		// Not representable as a key; evaluate uncached.
		return compile(expr)
	}

	e.mu.RLock()
	p, ok := e.cache[key]
	e.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := compile(expr)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.cache[key] = p
	e.mu.Unlock()
	return p, nil
}

// Validate checks expr with a throwaway engine.
func Validate(expr Expr) error {
	_, err := compile(expr)
	return err
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("query: %s: %w", fmt.Sprintf(format, args...), ErrInvalidQuery)
}
