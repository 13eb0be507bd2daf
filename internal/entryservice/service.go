// Package entryservice coordinates the entry database with its SQLite mirror.
package entryservice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pAIrprogio/synscript-sub000/internal/index"
	"github.com/pAIrprogio/synscript-sub000/internal/mddb"
)

// EntryDetail is the full representation of an entry.
type EntryDetail struct {
	*mddb.Entry
	// Ancestors lists the ids of loaded ancestor entries, root first.
	Ancestors []string `json:"ancestors"`
}

// EntryListItem is a lightweight item in a list response.
type EntryListItem struct {
	ID        string    `json:"id"`
	Type      string    `json:"type,omitempty"`
	RelPath   string    `json:"rel_path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RefreshResult summarizes one refresh.
type RefreshResult struct {
	Entries int `json:"entries"`
	index.SyncResult
	Took time.Duration `json:"took"`
}

// RefreshListener is notified after every refresh attempt. err is non-nil
// when the reload failed; res is then nil.
type RefreshListener func(res *RefreshResult, err error)

// Service coordinates database and index operations.
type Service struct {
	db     *mddb.DB
	idx    index.EntryIndex
	logger *slog.Logger

	// refreshMu serializes Refresh; the database must not refresh concurrently.
	refreshMu sync.Mutex
	listeners []RefreshListener
}

// NewService creates a new entry service.
func NewService(db *mddb.DB, idx index.EntryIndex, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, idx: idx, logger: logger}
}

// OnRefresh registers fn to run after each refresh. It is not safe to call
// concurrently with Refresh.
func (s *Service) OnRefresh(fn RefreshListener) {
	s.listeners = append(s.listeners, fn)
}

// Root returns the database root directory.
func (s *Service) Root() string {
	return s.db.Root()
}

// Covers reports whether an absolute path belongs to the database.
func (s *Service) Covers(path string) bool {
	return s.db.Covers(path)
}

// Get returns one entry with its ancestor chain.
func (s *Service) Get(ctx context.Context, id string) (*EntryDetail, error) {
	e, err := s.db.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	chain, err := s.db.Ancestors(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(chain))
	for i, a := range chain {
		ids[i] = a.ID
	}
	return &EntryDetail{Entry: e, Ancestors: ids}, nil
}

// ListEntries returns paginated entries from the index with an optional type
// filter.
func (s *Service) ListEntries(_ context.Context, limit, offset int, typ string) ([]EntryListItem, int, error) {
	rows, total, err := s.idx.ListEntries(limit, offset, typ)
	if err != nil {
		return nil, 0, err
	}
	items := make([]EntryListItem, len(rows))
	for i, r := range rows {
		items[i] = EntryListItem{
			ID:        r.ID,
			Type:      r.Type,
			RelPath:   r.RelPath,
			Checksum:  r.Checksum,
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Match returns the entries matching input in path order.
func (s *Service) Match(ctx context.Context, input any, skipEmpty bool) ([]*mddb.Entry, error) {
	return s.db.MatchOne(ctx, input, mddb.MatchOptions{SkipEmpty: skipEmpty})
}

// MatchAny returns the entries matching at least one input.
func (s *Service) MatchAny(ctx context.Context, inputs []any, skipEmpty bool) ([]*mddb.Entry, error) {
	return s.db.MatchAny(ctx, inputs, mddb.MatchOptions{SkipEmpty: skipEmpty})
}

// Search delegates text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.idx.Search(query, limit)
}

// Create writes a new entry file and refreshes so it becomes visible.
func (s *Service) Create(ctx context.Context, rel string, content []byte) (*EntryDetail, error) {
	e, err := s.db.Create(ctx, rel, content)
	if err != nil {
		return nil, err
	}
	s.logger.Info("entryservice: created", slog.String("id", e.ID), slog.String("path", e.File.RelPath))
	if _, err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s.Get(ctx, e.ID)
}

// Delete removes the file backing id and refreshes.
func (s *Service) Delete(ctx context.Context, id string) error {
	e, err := s.db.Remove(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Info("entryservice: deleted", slog.String("id", e.ID), slog.String("path", e.File.RelPath))
	_, err = s.Refresh(ctx)
	return err
}

// Refresh drops every cached entry, reloads the directory and mirrors the
// result into the index.
func (s *Service) Refresh(ctx context.Context) (*RefreshResult, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.db.Refresh()
	res, err := s.sync(ctx)
	for _, fn := range s.listeners {
		fn(res, err)
	}
	return res, err
}

// Sync loads the entries (if not loaded yet) and mirrors them into the index
// without dropping caches.
func (s *Service) Sync(ctx context.Context) (*RefreshResult, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	return s.sync(ctx)
}

func (s *Service) sync(ctx context.Context) (*RefreshResult, error) {
	start := time.Now()
	entries, err := s.db.All(ctx)
	if err != nil {
		s.logger.Warn("entryservice: load failed", slog.String("error", err.Error()))
		return nil, err
	}
	sr, err := index.Sync(s.idx, entries, s.logger)
	if err != nil {
		return nil, fmt.Errorf("entryservice: sync index: %w", err)
	}
	res := &RefreshResult{Entries: len(entries), SyncResult: sr, Took: time.Since(start)}
	s.logger.Info("entryservice: synced",
		slog.Int("entries", res.Entries),
		slog.Int("upserted", sr.Upserted),
		slog.Int("deleted", sr.Deleted),
		slog.Duration("took", res.Took))
	return res, nil
}
