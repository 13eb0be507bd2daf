package mddb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pAIrprogio/synscript-sub000/internal/apperr"
	"github.com/pAIrprogio/synscript-sub000/internal/frontmatter"
	"github.com/pAIrprogio/synscript-sub000/internal/models"
	"github.com/pAIrprogio/synscript-sub000/internal/query"
	"github.com/pAIrprogio/synscript-sub000/internal/schema"
	"github.com/pAIrprogio/synscript-sub000/internal/storage"
)

const readConcurrency = 16

// load reads every matching file and returns the entries in relative path
// order. Any invalid file fails the whole load.
func (db *DB) load(ctx context.Context) ([]*Entry, error) {
	start := time.Now()

	files, err := db.store.Glob(db.cfg.globs)
	if err != nil {
		return nil, fmt.Errorf("mddb: list files: %w", err)
	}

	entries := make([]*Entry, len(files))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(readConcurrency)
	for i, f := range files {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			e, err := db.parse(f)
			if err != nil {
				return err
			}
			entries[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]*Entry, len(entries))
	for _, e := range entries {
		if prev, ok := seen[e.ID]; ok {
			return nil, fmt.Errorf("mddb: id %q defined by %s and %s: %w",
				e.ID, prev.File.RelPath, e.File.RelPath, apperr.ErrDuplicateID)
		}
		seen[e.ID] = e
	}

	db.cfg.logger.Debug("mddb: loaded",
		slog.String("root", db.Root()),
		slog.Int("entries", len(entries)),
		slog.Duration("took", time.Since(start)))
	return entries, nil
}

// parse turns one file into an entry.
func (db *DB) parse(f models.File) (*Entry, error) {
	data, err := db.store.Read(f.RelPath)
	if err != nil {
		return nil, fmt.Errorf("mddb: %w", err)
	}
	return db.build(f, data)
}

func (db *DB) build(f models.File, data []byte) (*Entry, error) {
	doc, err := frontmatter.Parse(data)
	if err != nil {
		return nil, &LoadError{Path: f.RelPath, Err: err}
	}
	fields, err := db.cfg.schema.Validate(doc.Header)
	if err != nil {
		return nil, &LoadError{Path: f.RelPath, Err: err}
	}

	expr := query.Never
	if q, ok := fields[schema.QueryKey]; ok {
		if q != nil {
			expr = q
		}
		delete(fields, schema.QueryKey)
	}

	id, typ := ResolveID(f.RelPath, db.cfg.separator)
	return &Entry{
		ID:      id,
		Type:    typ,
		Content: strings.TrimSpace(doc.Body),
		File:    f,
		Query:   expr,
		Fields:  fields,
	}, nil
}

// ParseFile parses a single file by path (absolute or relative to the working
// directory). Files outside the root or not matching the globs fail with
// apperr.ErrNotMember; the result is not added to the loaded set.
func (db *DB) ParseFile(path string) (*Entry, error) {
	f, err := db.member(path)
	if err != nil {
		return nil, err
	}
	return db.parse(f)
}

// Contains reports whether path is one of the database's files.
func (db *DB) Contains(path string) bool {
	_, err := db.member(path)
	return err == nil
}

// Covers reports whether path lies under the root and matches the globs,
// whether or not the file exists.
func (db *DB) Covers(path string) bool {
	_, err := db.selected(path)
	return err == nil
}

func (db *DB) selected(path string) (string, error) {
	rel, err := db.store.Rel(path)
	if err != nil {
		return "", fmt.Errorf("mddb: %w", err)
	}
	if !storage.MatchAny(db.cfg.globs, rel) {
		return "", fmt.Errorf("mddb: %s does not match %v: %w", rel, db.cfg.globs, apperr.ErrNotMember)
	}
	return rel, nil
}

func (db *DB) member(path string) (models.File, error) {
	rel, err := db.selected(path)
	if err != nil {
		return models.File{}, err
	}
	f, err := db.store.Stat(rel)
	if err != nil {
		return models.File{}, fmt.Errorf("mddb: %w", err)
	}
	return f, nil
}

// Create validates data as an entry and writes it to rel (relative to the
// root). The file must match the globs, must not exist yet and must not
// resolve to an id that is already loaded. The loaded set is left untouched;
// call Refresh to pick the new entry up.
func (db *DB) Create(ctx context.Context, rel string, data []byte) (*Entry, error) {
	rel = path.Clean(filepath.ToSlash(rel))
	if path.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, "../") {
		return nil, fmt.Errorf("mddb: %s is outside the root: %w", rel, apperr.ErrNotMember)
	}
	if !storage.MatchAny(db.cfg.globs, rel) {
		return nil, fmt.Errorf("mddb: %s does not match %v: %w", rel, db.cfg.globs, apperr.ErrNotMember)
	}
	if _, err := db.store.Stat(rel); err == nil {
		return nil, fmt.Errorf("mddb: %s: %w", rel, apperr.ErrAlreadyExists)
	}

	e, err := db.build(models.File{Path: filepath.Join(db.Root(), filepath.FromSlash(rel)), RelPath: rel}, data)
	if err != nil {
		return nil, err
	}
	if prev, err := db.Get(ctx, e.ID); err == nil {
		return nil, fmt.Errorf("mddb: id %q defined by %s and %s: %w",
			e.ID, prev.File.RelPath, rel, apperr.ErrDuplicateID)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	if err := db.store.Write(rel, data); err != nil {
		return nil, fmt.Errorf("mddb: %w", err)
	}
	if f, err := db.store.Stat(rel); err == nil {
		e.File = f
	}
	return e, nil
}

// Remove deletes the file backing the loaded entry id. Like Create it leaves
// the loaded set untouched until Refresh.
func (db *DB) Remove(ctx context.Context, id string) (*Entry, error) {
	e, err := db.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := db.store.Delete(e.File.RelPath); err != nil {
		return nil, fmt.Errorf("mddb: %w", err)
	}
	return e, nil
}
