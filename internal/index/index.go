package index

// EntryIndex defines the interface for entry mirror operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type EntryIndex interface {
	UpsertEntry(r EntryRow) error
	DeleteEntry(id string) error
	GetChecksum(id string) (string, error)
	GetEntry(id string) (*EntryRow, error)
	ListEntries(limit, offset int, typ string) ([]EntryRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies EntryIndex at compile time.
var _ EntryIndex = (*DB)(nil)
