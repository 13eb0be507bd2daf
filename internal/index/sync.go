package index

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pAIrprogio/synscript-sub000/internal/checksum"
	"github.com/pAIrprogio/synscript-sub000/internal/mddb"
)

// SyncResult counts the changes applied by Sync.
type SyncResult struct {
	Upserted  int `json:"upserted"`
	Deleted   int `json:"deleted"`
	Unchanged int `json:"unchanged"`
}

// Sync brings the index up to date with a freshly loaded entry set:
//   - new/changed entries are upserted
//   - entries no longer loaded are deleted from the index
func Sync(db EntryIndex, entries []*mddb.Entry, logger *slog.Logger) (SyncResult, error) {
	var res SyncResult

	checksums, err := db.AllChecksums()
	if err != nil {
		return res, err
	}

	loaded := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		loaded[e.ID] = struct{}{}

		row, err := rowFor(e)
		if err != nil {
			logger.Warn("sync: encode failed", slog.String("id", e.ID), slog.String("error", err.Error()))
			continue
		}
		if checksums[e.ID] == row.Checksum {
			res.Unchanged++
			continue
		}
		if err := db.UpsertEntry(row); err != nil {
			return res, err
		}
		res.Upserted++
		logger.Debug("sync: indexed", slog.String("id", e.ID))
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := loaded[id]; ok {
			continue
		}
		if err := db.DeleteEntry(id); err != nil {
			return res, err
		}
		res.Deleted++
		logger.Debug("sync: removed stale", slog.String("id", id))
	}

	return res, nil
}

// rowFor encodes an entry as an index row. The checksum covers everything the
// row stores, so any change to the entry is picked up.
func rowFor(e *mddb.Entry) (EntryRow, error) {
	q, err := json.Marshal(e.Query)
	if err != nil {
		return EntryRow{}, fmt.Errorf("index: encode query: %w", err)
	}
	fields := []byte("{}")
	if len(e.Fields) > 0 {
		if fields, err = json.Marshal(e.Fields); err != nil {
			return EntryRow{}, fmt.Errorf("index: encode fields: %w", err)
		}
	}
	row := EntryRow{
		ID:        e.ID,
		Type:      e.Type,
		RelPath:   e.File.RelPath,
		Content:   e.Content,
		Query:     q,
		Fields:    fields,
		UpdatedAt: e.File.UpdatedAt,
	}
	if row.Checksum, err = checksum.JSON(row); err != nil {
		return EntryRow{}, fmt.Errorf("index: %w", err)
	}
	return row, nil
}
