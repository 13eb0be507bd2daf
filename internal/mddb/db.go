// Package mddb is a hierarchical database of markdown entries.
//
// Every file under the root that matches the configured globs becomes an
// Entry whose id is derived from its path ("buttons/variants.md" is
// "buttons/variants"). Each entry carries a query expression from its
// frontmatter. Matching walks entries in path order and only evaluates an
// entry when none of its ancestors failed for the same input, so authors can
// write progressively narrower predicates down the directory tree.
//
// Entries, the id lookup and the ancestor index are loaded lazily and kept
// until Refresh. The DB is safe for concurrent matching; callers must not
// race Refresh against itself.
package mddb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/pAIrprogio/synscript-sub000/internal/apperr"
	"github.com/pAIrprogio/synscript-sub000/internal/storage"
)

// DB is an entry database rooted at one directory.
type DB struct {
	store storage.Provider
	cfg   config

	mu        sync.Mutex
	loaded    bool
	entries   []*Entry
	byID      map[string]*Entry
	ancestors map[string][]*Entry

	cacheMu sync.Mutex
	matches map[string][]*Entry
	// gen counts refreshes; a match computed under an older generation is
	// never stored.
	gen uint64
}

// New opens a DB over the directory root.
func New(root string, opts ...Option) (*DB, error) {
	store, err := storage.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("mddb: %w", err)
	}
	return Open(store, opts...)
}

// Open returns a DB reading entries through store.
func Open(store storage.Provider, opts ...Option) (*DB, error) {
	cfg := defaultConfig()
	return newDB(store, cfg, opts)
}

// With returns a new DB over the same root with opts applied on top of db's
// configuration. The new DB starts with empty caches; db is unchanged.
func (db *DB) With(opts ...Option) (*DB, error) {
	cfg := db.cfg
	cfg.globs = slices.Clone(cfg.globs)
	return newDB(db.store, cfg, opts)
}

func newDB(store storage.Provider, cfg config, opts []Option) (*DB, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case len(cfg.globs) == 0:
		return nil, errors.New("mddb: at least one glob pattern is required")
	case cfg.separator == "":
		return nil, errors.New("mddb: separator must not be empty")
	case cfg.schema == nil:
		return nil, errors.New("mddb: schema is required")
	case cfg.matcher == nil:
		return nil, errors.New("mddb: matcher is required")
	}
	return &DB{
		store:   store,
		cfg:     cfg,
		matches: make(map[string][]*Entry),
	}, nil
}

// Root returns the absolute database root.
func (db *DB) Root() string {
	return db.store.Root()
}

// Separator returns the id segment separator.
func (db *DB) Separator() string {
	return db.cfg.separator
}

// Refresh drops every cache: entries, id lookup, ancestor index, matched
// results and the query engine's compiled expressions. The next access
// rescans the directory.
func (db *DB) Refresh() {
	db.mu.Lock()
	db.loaded = false
	db.entries = nil
	db.byID = nil
	db.ancestors = nil
	db.mu.Unlock()

	db.resetMatches()
	db.cfg.matcher.ClearCache()
	db.cfg.logger.Debug("mddb: refreshed", slog.String("root", db.Root()))
}

// All returns every entry sorted by relative path.
func (db *DB) All(ctx context.Context) ([]*Entry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return slices.Clone(db.entries), nil
}

// Get returns the entry with the given id.
func (db *DB) Get(ctx context.Context, id string) (*Entry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.ensureIndexed(ctx); err != nil {
		return nil, err
	}
	e, ok := db.byID[id]
	if !ok {
		return nil, fmt.Errorf("mddb: entry %q: %w", id, apperr.ErrNotFound)
	}
	return e, nil
}

// Ancestors returns the loaded entries whose ids are strict prefixes of id,
// root first.
func (db *DB) Ancestors(ctx context.Context, id string) ([]*Entry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.ensureAncestors(ctx); err != nil {
		return nil, err
	}
	chain, ok := db.ancestors[id]
	if !ok {
		return nil, fmt.Errorf("mddb: entry %q: %w", id, apperr.ErrNotFound)
	}
	return slices.Clone(chain), nil
}

// snapshot returns the current entry list and ancestor index, loading them if
// needed. Both are replaced, never mutated, so they may be read unlocked.
func (db *DB) snapshot(ctx context.Context) ([]*Entry, map[string][]*Entry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.ensureAncestors(ctx); err != nil {
		return nil, nil, err
	}
	return db.entries, db.ancestors, nil
}

func (db *DB) ensureLoaded(ctx context.Context) error {
	if db.loaded {
		return nil
	}
	entries, err := db.load(ctx)
	if err != nil {
		return err
	}
	db.entries = entries
	db.loaded = true
	return nil
}

func (db *DB) ensureIndexed(ctx context.Context) error {
	if err := db.ensureLoaded(ctx); err != nil {
		return err
	}
	if db.byID != nil {
		return nil
	}
	byID := make(map[string]*Entry, len(db.entries))
	for _, e := range db.entries {
		byID[e.ID] = e
	}
	db.byID = byID
	return nil
}

func (db *DB) ensureAncestors(ctx context.Context) error {
	if err := db.ensureIndexed(ctx); err != nil {
		return err
	}
	if db.ancestors != nil {
		return nil
	}
	sep := db.cfg.separator
	ancestors := make(map[string][]*Entry, len(db.entries))
	for _, e := range db.entries {
		segs := e.Segments(sep)
		var chain []*Entry
		for i := 1; i < len(segs); i++ {
			if a, ok := db.byID[strings.Join(segs[:i], sep)]; ok {
				chain = append(chain, a)
			}
		}
		ancestors[e.ID] = chain
	}
	db.ancestors = ancestors
	return nil
}
