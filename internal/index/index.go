package index

// FileIndex defines the interface for vault file indexing operations.
// Consumers should depend on this interface rather than the concrete *DB
// type.
type FileIndex interface {
	UpsertFile(f FileRow, body string, links []string) error
	DeleteFile(path string) error
	GetChecksum(path string) (string, error)
	AllStamps() (map[string]Stamp, error)
	Search(query string, limit int) ([]SearchResult, error)
	Backlinks(target string) ([]string, error)
	Reset() error
	Close() error
}

// Verify *DB satisfies FileIndex at compile time.
var _ FileIndex = (*DB)(nil)
