package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"dedupe-go/internal/database/migrations"
	"dedupe-go/internal/database/sqlc"
	"dedupe-go/internal/dedupe"
)

// SQLDatabase implements dedupe.Database over the sqlc-generated queries.
// The same queries run on SQLite and PostgreSQL.
type SQLDatabase struct {
	db      *sql.DB
	queries *sqlc.Queries
	dialect string
	path    string
}

// Compile-time check that SQLDatabase implements dedupe.Database.
var _ dedupe.Database = (*SQLDatabase)(nil)

// NewSQLDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLDatabaseFromDB(db *sql.DB, dialect string) *SQLDatabase {
	return newSQLDatabase(db, dialect, "")
}

func newSQLDatabase(db *sql.DB, dialect, path string) *SQLDatabase {
	return &SQLDatabase{
		db:      db,
		queries: sqlc.New(dialectDBTX(db, dialect)),
		dialect: dialect,
		path:    path,
	}
}

// withTx returns queries bound to tx.
func (s *SQLDatabase) withTx(tx *sql.Tx) *sqlc.Queries {
	return sqlc.New(dialectDBTX(tx, s.dialect))
}

// dialectDBTX adapts conn to the placeholder style of dialect.
func dialectDBTX(conn sqlc.DBTX, dialect string) sqlc.DBTX {
	if dialect == migrations.DialectPostgres {
		return postgresDBTX{conn: conn}
	}
	return conn
}

// postgresDBTX rebinds the generated queries before they reach PostgreSQL.
type postgresDBTX struct {
	conn sqlc.DBTX
}

func (p postgresDBTX) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return p.conn.ExecContext(ctx, rebind(query), args...)
}

func (p postgresDBTX) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return p.conn.PrepareContext(ctx, rebind(query))
}

func (p postgresDBTX) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return p.conn.QueryContext(ctx, rebind(query), args...)
}

func (p postgresDBTX) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return p.conn.QueryRowContext(ctx, rebind(query), args...)
}

// rebind rewrites ? placeholders as $1, $2, ...
func rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Hash records

func (s *SQLDatabase) AppendRecord(ctx context.Context, uniqueName, originalName string, createdAt time.Time) (*dedupe.HashRecord, error) {
	id, err := s.queries.AppendHashRecord(ctx, sqlc.AppendHashRecordParams{
		UniqueName:   uniqueName,
		OriginalName: originalName,
		CreatedAt:    createdAt,
	})
	if err != nil {
		return nil, fmt.Errorf("appending hash record: %w", err)
	}
	return &dedupe.HashRecord{
		ID:           id,
		UniqueName:   uniqueName,
		OriginalName: originalName,
		CreatedAt:    createdAt,
	}, nil
}

func (s *SQLDatabase) LatestByUniqueName(ctx context.Context, uniqueName string) (*dedupe.HashRecord, error) {
	rec, err := s.queries.LatestHashRecordByUniqueName(ctx, uniqueName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding hash record by unique name: %w", err)
	}
	return toHashRecord(rec), nil
}

func (s *SQLDatabase) LatestByOriginalName(ctx context.Context, originalName string) (*dedupe.HashRecord, error) {
	rec, err := s.queries.LatestHashRecordByOriginalName(ctx, originalName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding hash record by original name: %w", err)
	}
	return toHashRecord(rec), nil
}

func (s *SQLDatabase) ListRecords(ctx context.Context, name string, limit int) ([]*dedupe.HashRecord, error) {
	recs, err := s.queries.ListHashRecords(ctx, sqlc.ListHashRecordsParams{
		UniqueName:   name,
		OriginalName: name,
		Limit:        int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("listing hash records: %w", err)
	}

	result := make([]*dedupe.HashRecord, len(recs))
	for i, rec := range recs {
		result[i] = toHashRecord(rec)
	}
	return result, nil
}

func toHashRecord(rec sqlc.HashRecord) *dedupe.HashRecord {
	return &dedupe.HashRecord{
		ID:           rec.ID,
		UniqueName:   rec.UniqueName,
		OriginalName: rec.OriginalName,
		CreatedAt:    rec.CreatedAt,
	}
}

// Assets

func (s *SQLDatabase) CreateAsset(ctx context.Context, asset *dedupe.Asset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.withTx(tx)
	id, err := qtx.CreateAsset(ctx, sqlc.CreateAssetParams{
		Collection: asset.Collection,
		CreatedAt:  asset.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("inserting asset: %w", err)
	}

	for _, field := range sortedFields(asset.Files) {
		err := qtx.InsertAssetFile(ctx, sqlc.InsertAssetFileParams{
			AssetID: id,
			Field:   field,
			Name:    asset.Files[field],
		})
		if err != nil {
			return fmt.Errorf("inserting asset field %s: %w", field, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	asset.ID = id
	return nil
}

func (s *SQLDatabase) Collections(ctx context.Context) ([]string, error) {
	collections, err := s.queries.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	return collections, nil
}

func (s *SQLDatabase) AssetIDs(ctx context.Context, collection string) ([]int64, error) {
	ids, err := s.queries.ListAssetIDs(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("listing assets of %s: %w", collection, err)
	}
	return ids, nil
}

func (s *SQLDatabase) GetAsset(ctx context.Context, id int64) (*dedupe.Asset, error) {
	row, err := s.queries.GetAsset(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding asset %d: %w", id, err)
	}

	files, err := s.queries.ListAssetFiles(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading files of asset %d: %w", id, err)
	}

	asset := &dedupe.Asset{
		ID:         row.ID,
		Collection: row.Collection,
		CreatedAt:  row.CreatedAt,
		Files:      make(map[string]string, len(files)),
	}
	for _, f := range files {
		asset.Files[f.Field] = f.Name
	}
	return asset, nil
}

func (s *SQLDatabase) UpdateAssetFiles(ctx context.Context, asset *dedupe.Asset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.withTx(tx)
	for _, field := range sortedFields(asset.Files) {
		err := qtx.UpsertAssetFile(ctx, sqlc.UpsertAssetFileParams{
			AssetID: asset.ID,
			Field:   field,
			Name:    asset.Files[field],
		})
		if err != nil {
			return fmt.Errorf("updating asset %d field %s: %w", asset.ID, field, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func sortedFields(files map[string]string) []string {
	fields := make([]string, 0, len(files))
	for f := range files {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Run history

func (s *SQLDatabase) CreateRun(ctx context.Context, runID, operation string, startedAt time.Time) (*dedupe.Run, error) {
	run := &dedupe.Run{
		RunID:     runID,
		Operation: operation,
		StartedAt: startedAt,
		Status:    "running",
	}
	id, err := s.queries.CreateRun(ctx, sqlc.CreateRunParams{
		RunID:     runID,
		Operation: operation,
		StartedAt: startedAt,
		Status:    run.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}
	run.ID = id
	return run, nil
}

func (s *SQLDatabase) FinishRun(ctx context.Context, run *dedupe.Run, finishedAt time.Time) error {
	run.FinishedAt = sql.NullTime{Time: finishedAt, Valid: true}
	err := s.queries.FinishRun(ctx, sqlc.FinishRunParams{
		FinishedAt: run.FinishedAt,
		Status:     run.Status,
		Updated:    run.Updated,
		Skipped:    run.Skipped,
		Errors:     run.Errors,
		ID:         run.ID,
	})
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return nil
}

func (s *SQLDatabase) ListRuns(ctx context.Context, limit int) ([]*dedupe.Run, error) {
	runs, err := s.queries.ListRuns(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	result := make([]*dedupe.Run, len(runs))
	for i, r := range runs {
		result[i] = &dedupe.Run{
			ID:         r.ID,
			RunID:      r.RunID,
			Operation:  r.Operation,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
			Status:     r.Status,
			Updated:    r.Updated,
			Skipped:    r.Skipped,
			Errors:     r.Errors,
		}
	}
	return result, nil
}

// Dialect returns "sqlite" or "postgres".
func (s *SQLDatabase) Dialect() string {
	return s.dialect
}

// Path returns the database file path (or ":memory:" for in-memory databases).
// It is empty for PostgreSQL.
func (s *SQLDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db, s.dialect)
}

// Migrate applies any pending migrations.
func (s *SQLDatabase) Migrate() error {
	return migrations.MigrateUp(s.db, s.dialect)
}

// Close closes the database connection.
func (s *SQLDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
