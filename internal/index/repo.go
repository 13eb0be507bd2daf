package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pAIrprogio/synscript-sub000/internal/apperr"
)

// EntryRow represents a row in the entries table.
type EntryRow struct {
	ID        string          `json:"id"`
	Type      string          `json:"type,omitempty"`
	RelPath   string          `json:"rel_path"`
	Content   string          `json:"content,omitempty"`
	Query     json.RawMessage `json:"query"`
	Fields    json.RawMessage `json:"fields"`
	Checksum  string          `json:"checksum"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	RelPath string `json:"rel_path"`
	Snippet string `json:"snippet"`
}

// UpsertEntry inserts or replaces an entry and its FTS row within a transaction.
func (db *DB) UpsertEntry(r EntryRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO entries (id, type, rel_path, content, query, fields, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type       = excluded.type,
			rel_path   = excluded.rel_path,
			content    = excluded.content,
			query      = excluded.query,
			fields     = excluded.fields,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, r.ID, r.Type, r.RelPath, r.Content, rawOr(r.Query, "false"), rawOr(r.Fields, "{}"), r.Checksum, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert entry: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, r); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteEntry removes an entry and its FTS row.
func (db *DB) DeleteEntry(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete entry: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for an entry, or empty string if not found.
func (db *DB) GetChecksum(id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM entries WHERE id = ?`, id).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// GetEntry returns one indexed entry.
func (db *DB) GetEntry(id string) (*EntryRow, error) {
	row := db.conn.QueryRow(`
		SELECT id, type, rel_path, content, query, fields, checksum, updated_at
		FROM entries WHERE id = ?
	`, id)
	r, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: entry %q: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get entry: %w", err)
	}
	return r, nil
}

// ListEntries returns a page of entries ordered by relative path, optionally
// restricted to one type, together with the total number of matching rows.
func (db *DB) ListEntries(limit, offset int, typ string) ([]EntryRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where, args := "", []any{}
	if typ != "" {
		where = "WHERE type = ?"
		args = append(args, typ)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM entries `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count entries: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT id, type, rel_path, content, query, fields, checksum, updated_at
		FROM entries `+where+`
		ORDER BY rel_path
		LIMIT ? OFFSET ?
	`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list entries: %w", err)
	}
	defer rows.Close()

	out := make([]EntryRow, 0, limit)
	for rows.Next() {
		r, err := scanEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("index: scan entry: %w", err)
		}
		out = append(out, *r)
	}
	return out, total, rows.Err()
}

// AllChecksums returns the checksum of every indexed entry keyed by id.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM entries`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*EntryRow, error) {
	var (
		r             EntryRow
		query, fields string
	)
	if err := s.Scan(&r.ID, &r.Type, &r.RelPath, &r.Content, &query, &fields, &r.Checksum, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Query = json.RawMessage(query)
	r.Fields = json.RawMessage(fields)
	return &r, nil
}

func rawOr(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 {
		return fallback
	}
	return string(raw)
}
