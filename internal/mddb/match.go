package mddb

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pAIrprogio/synscript-sub000/internal/query"
)

// MatchOptions tunes a match call.
type MatchOptions struct {
	// SkipEmpty drops matching entries whose content is blank.
	SkipEmpty bool
}

// MatchOne returns the entries whose query matches input, in path order.
//
// An entry is only evaluated when no ancestor in its chain evaluated to false
// for this input; ancestors that are not loaded entries never gate.
func (db *DB) MatchOne(ctx context.Context, input any, opts MatchOptions) ([]*Entry, error) {
	matched, err := db.cachedMatch(ctx, input)
	if err != nil {
		return nil, err
	}
	if !opts.SkipEmpty {
		return slices.Clone(matched), nil
	}
	out := make([]*Entry, 0, len(matched))
	for _, e := range matched {
		if e.HasContent() {
			out = append(out, e)
		}
	}
	return out, nil
}

// MatchAny runs MatchOne for every input concurrently and merges the results.
// Each entry appears once; the result is sorted by absolute file path. The
// first failing input fails the call.
func (db *DB) MatchAny(ctx context.Context, inputs []any, opts MatchOptions) ([]*Entry, error) {
	if _, _, err := db.snapshot(ctx); err != nil {
		return nil, err
	}

	results := make([][]*Entry, len(inputs))
	g, gCtx := errgroup.WithContext(ctx)
	for i, input := range inputs {
		g.Go(func() error {
			res, err := db.MatchOne(gCtx, input, opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]*Entry)
	for _, res := range results {
		for _, e := range res {
			if opts.SkipEmpty && !e.HasContent() {
				continue
			}
			merged[e.ID] = e
		}
	}
	out := make([]*Entry, 0, len(merged))
	for _, e := range merged {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b *Entry) int {
		return strings.Compare(a.File.Path, b.File.Path)
	})
	return out, nil
}

func (db *DB) match(ctx context.Context, input any) ([]*Entry, error) {
	entries, ancestors, err := db.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	evaluated := make(map[string]bool, len(entries))
	out := make([]*Entry, 0)
	opts := query.Options{SkipValidation: true, UseCache: true}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !ancestorsMatched(ancestors[e.ID], evaluated) {
			evaluated[e.ID] = false
			continue
		}
		ok, err := db.cfg.matcher.Match(e.Query, input, opts)
		if err != nil {
			return nil, &MatchError{ID: e.ID, Err: err}
		}
		evaluated[e.ID] = ok
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// ancestorsMatched fails only on an ancestor recorded as false. Ancestors not
// yet evaluated are treated as matched.
func ancestorsMatched(chain []*Entry, evaluated map[string]bool) bool {
	for _, a := range chain {
		if ok, seen := evaluated[a.ID]; seen && !ok {
			return false
		}
	}
	return true
}

func (db *DB) cachedMatch(ctx context.Context, input any) ([]*Entry, error) {
	if db.cfg.cacheKey == nil {
		return db.match(ctx, input)
	}
	key, err := db.cfg.cacheKey(input)
	if err != nil {
		return nil, fmt.Errorf("mddb: cache key: %w", err)
	}

	db.cacheMu.Lock()
	res, ok := db.matches[key]
	gen := db.gen
	db.cacheMu.Unlock()
	if ok {
		return res, nil
	}

	res, err = db.match(ctx, input)
	if err != nil {
		return nil, err
	}
	db.cacheMu.Lock()
	if db.gen == gen {
		db.matches[key] = res
	}
	db.cacheMu.Unlock()
	return res, nil
}

func (db *DB) resetMatches() {
	db.cacheMu.Lock()
	db.matches = make(map[string][]*Entry)
	db.gen++
	db.cacheMu.Unlock()
}
