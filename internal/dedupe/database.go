package dedupe

import (
	"context"
	"database/sql"
	"time"
)

// HashRecord is one historical fact: OriginalName was deduplicated to
// UniqueName at CreatedAt. Records are append-only; ID is the insertion
// sequence and decides which record is the latest.
type HashRecord struct {
	ID           int64
	UniqueName   string
	OriginalName string
	CreatedAt    time.Time
}

// RecordStore persists HashRecords.
// Lookups return nil, nil when no record matches.
type RecordStore interface {
	// AppendRecord appends a record. It never updates or deletes existing ones.
	AppendRecord(ctx context.Context, uniqueName, originalName string, createdAt time.Time) (*HashRecord, error)

	// LatestByUniqueName returns the most recently appended record with the given unique name.
	LatestByUniqueName(ctx context.Context, uniqueName string) (*HashRecord, error)

	// LatestByOriginalName returns the most recently appended record with the given original name.
	LatestByOriginalName(ctx context.Context, originalName string) (*HashRecord, error)

	// ListRecords returns up to limit records whose unique or original name
	// equals name, newest first.
	ListRecords(ctx context.Context, name string, limit int) ([]*HashRecord, error)
}

// Asset is a file-bearing record: a row in a named collection holding one
// stored name per file field. An empty name means the field is unset.
type Asset struct {
	ID         int64
	Collection string
	Files      map[string]string
	CreatedAt  time.Time
}

// AssetCatalog is the store of file-bearing records walked by the Deduplicator.
type AssetCatalog interface {
	// CreateAsset inserts a new asset and assigns its ID.
	CreateAsset(ctx context.Context, asset *Asset) error

	// Collections returns the names of all collections holding assets.
	Collections(ctx context.Context) ([]string, error)

	// AssetIDs returns the IDs of the assets in a collection, newest first.
	AssetIDs(ctx context.Context, collection string) ([]int64, error)

	// GetAsset returns an asset by ID, or nil if it does not exist.
	GetAsset(ctx context.Context, id int64) (*Asset, error)

	// UpdateAssetFiles replaces the stored names of an asset's file fields.
	UpdateAssetFiles(ctx context.Context, asset *Asset) error
}

// Run is a recorded CLI operation together with its outcome counters.
type Run struct {
	ID         int64
	RunID      string
	Operation  string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string
	Updated    int64
	Skipped    int64
	Errors     int64
}

// RunStore records operation history.
type RunStore interface {
	CreateRun(ctx context.Context, runID, operation string, startedAt time.Time) (*Run, error)
	FinishRun(ctx context.Context, run *Run, finishedAt time.Time) error
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
}

// Database groups the persistence interfaces backed by one metadata database.
type Database interface {
	RecordStore
	AssetCatalog
	RunStore

	// CheckMigrations verifies the schema is up to date.
	CheckMigrations() error

	// Close closes the database connection.
	Close() error
}
