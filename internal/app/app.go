package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dedupe-go/internal/blobstore"
	"dedupe-go/internal/config"
	"dedupe-go/internal/database"
	"dedupe-go/internal/dedupe"
	"dedupe-go/internal/fs"
	"dedupe-go/internal/server"
)

// Options adjusts how an App is constructed. The zero value logs every level
// to stderr and uses the real clock and random run IDs.
type Options struct {
	Console io.Writer // nil means os.Stderr; io.Discard silences the console
	Level   slog.Leveler
	Clock   dedupe.Clock
	IDs     dedupe.IDGenerator
}

// App is the application layer between the CLI and the dedupe package.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw strings and paths, and records mutating operations as runs.
type App struct {
	cfg     *config.Config
	db      *database.SQLDatabase
	storage *dedupe.UniqueStorage
	plain   *dedupe.PlainStorage
	static  dedupe.Storage
	fsmgr   dedupe.FilesystemManager
	log     dedupe.Logger
	logFile io.Closer
	clock   dedupe.Clock
	op      *Operation
}

// NewApp creates a fully wired App from the given config.
// operation names the CLI command being run (e.g. "save", "dedupe").
// The caller must call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, operation string, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.Clock == nil {
		opts.Clock = dedupe.RealClock{}
	}
	if opts.IDs == nil {
		opts.IDs = dedupe.UUIDGenerator{}
	}
	if opts.Console == nil {
		opts.Console = os.Stderr
	}

	nameOpts := nameOptions(cfg.Dedupe)
	if err := nameOpts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid naming options: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	// An in-memory database starts empty every time.
	if cfg.Database.Type == "memory" {
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating in-memory database: %w", err)
		}
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date (run the migrate command): %w", err)
	}

	blobs, err := blobstore.NewBlobStoreFromConfig(ctx, cfg.Storage)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating blob store: %w", err)
	}

	var static dedupe.Storage
	if cfg.HTTP.StaticRoot != "" {
		store, err := blobstore.NewFileSystemStore(cfg.HTTP.StaticRoot)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating static store: %w", err)
		}
		static = dedupe.NewPlainStorage(store)
	}

	runID := opts.IDs.New()
	logger, logFile, err := newLogger(cfg.LogDir, runID, opts.Console, opts.Level)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	return &App{
		cfg:     cfg,
		db:      db,
		storage: dedupe.NewUniqueStorage(blobs, db, nameOpts, opts.Clock, log),
		plain:   dedupe.NewPlainStorage(blobs),
		static:  static,
		fsmgr:   fs.NewOSFilesystemManager(cfg.Filesystem.Ignore),
		log:     log,
		logFile: logFile,
		clock:   opts.Clock,
		op:      NewOperation(operation, runID),
	}, nil
}

// nameOptions converts the [dedupe] config section. An empty path prefix
// means the default one.
func nameOptions(cfg config.DedupeConfig) dedupe.NameOptions {
	opts := dedupe.DefaultNameOptions()
	if cfg.PathPrefix != "" {
		opts.Prefix = strings.Trim(cfg.PathPrefix, "/")
	}
	if cfg.HashLength != 0 {
		opts.HashLength = cfg.HashLength
	}
	opts.KeepBasename = cfg.KeepBasename
	return opts.WithExtensions(cfg.Extensions)
}

// Migrate applies pending schema migrations to the configured database.
func Migrate(ctx context.Context, cfg *config.Config) error {
	db, err := database.NewDatabaseFromConfig(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// RunID returns the ID of the current operation.
func (a *App) RunID() string {
	return a.op.RunID
}

// persistOperation saves the operation as a run, giving it a database ID.
// This should only be called for commands that change files or assets.
func (a *App) persistOperation(ctx context.Context) error {
	if a.op.Persisted() {
		return nil
	}
	run, err := a.db.CreateRun(ctx, a.op.RunID, a.op.Name, a.clock.Now())
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = run.ID
	return nil
}

// Save stores the local file at rawPath. name is the name to save it under
// and defaults to the file's base name. Returns the unique name.
func (a *App) Save(ctx context.Context, rawPath, name string) (string, error) {
	if err := a.persistOperation(ctx); err != nil {
		return "", err
	}

	p, err := a.fsmgr.Resolve(rawPath)
	if err != nil {
		a.op.Fail()
		return "", fmt.Errorf("resolving path: %w", err)
	}
	if p.IsDir() {
		a.op.Fail()
		return "", fmt.Errorf("%s is a directory, use collect instead", p.String())
	}
	if name == "" {
		name = filepath.Base(p.String())
	}

	f, err := a.fsmgr.Open(p)
	if err != nil {
		a.op.Fail()
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	unique, err := a.storage.Save(ctx, name, f)
	if err != nil {
		a.op.Fail()
		a.op.Count(0, 0, 1)
		return "", err
	}
	a.op.Count(1, 0, 0)
	return unique, nil
}

// Collect saves every file under the directory at rawDir and registers an
// asset for each.
func (a *App) Collect(ctx context.Context, rawDir string, opts dedupe.CollectOptions) (dedupe.CollectResult, error) {
	if err := a.persistOperation(ctx); err != nil {
		return dedupe.CollectResult{}, err
	}

	dir, err := a.fsmgr.Resolve(rawDir)
	if err != nil {
		a.op.Fail()
		return dedupe.CollectResult{}, fmt.Errorf("resolving path: %w", err)
	}

	collector := dedupe.NewCollector(a.fsmgr, a.storage, a.plain, a.db, a.clock, a.log)
	result, err := collector.Collect(ctx, dir, opts)
	a.op.Count(result.Saved, result.Vanished, result.Errors)
	switch {
	case err != nil:
		a.op.Fail()
	case result.Interrupted:
		a.op.Status = StatusInterrupted
	}
	return result, err
}

// Dedupe migrates the files of the given collections, or of all
// collections, to unique names. progress, if not nil, is called after each
// asset with the running counters.
func (a *App) Dedupe(ctx context.Context, progress func(dedupe.Result), collections ...string) (dedupe.Result, error) {
	if err := a.persistOperation(ctx); err != nil {
		return dedupe.Result{}, err
	}

	d := dedupe.NewDeduplicator(a.storage, a.db, a.log)
	if progress != nil {
		d.OnProgress(progress)
	}

	result, err := d.Run(ctx, collections...)
	a.op.Count(result.Updated, result.Skipped, result.Errors)
	switch {
	case err != nil:
		a.op.Fail()
	case result.Interrupted:
		a.op.Status = StatusInterrupted
	}
	return result, err
}

// AddAsset registers an asset in collection with the given field names.
func (a *App) AddAsset(ctx context.Context, collection string, files map[string]string) (*dedupe.Asset, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name required")
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("at least one field required")
	}
	for field, name := range files {
		if name == "" {
			continue
		}
		if err := dedupe.ValidateName(name); err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
	}

	if err := a.persistOperation(ctx); err != nil {
		return nil, err
	}

	asset := &dedupe.Asset{
		Collection: collection,
		Files:      files,
		CreatedAt:  a.clock.Now(),
	}
	if err := a.db.CreateAsset(ctx, asset); err != nil {
		a.op.Fail()
		return nil, err
	}
	a.op.Count(1, 0, 0)
	return asset, nil
}

// ResolveOriginal returns the latest original name recorded for name.
func (a *App) ResolveOriginal(ctx context.Context, name string) (string, error) {
	return a.storage.OriginalName(ctx, name)
}

// ResolveUnique returns the latest unique name recorded for an original name.
func (a *App) ResolveUnique(ctx context.Context, name string) (string, error) {
	return a.storage.LatestUniqueName(ctx, name)
}

// Log returns up to limit records mentioning name, newest first.
func (a *App) Log(ctx context.Context, name string, limit int) ([]*dedupe.HashRecord, error) {
	return a.db.ListRecords(ctx, name, limit)
}

// History returns the most recent runs.
func (a *App) History(ctx context.Context, limit int) ([]*dedupe.Run, error) {
	return a.db.ListRuns(ctx, limit)
}

// BackupDatabase writes a snapshot of the record database to dest.
func (a *App) BackupDatabase(dest string) error {
	abs, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	if _, err := os.Stat(abs); err == nil {
		return fmt.Errorf("%s already exists", abs)
	}
	return a.db.BackupTo(abs)
}

// Serve runs the HTTP server until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	ttl, err := a.cfg.HTTP.RedirectTTL()
	if err != nil {
		return err
	}

	srv, err := server.New(ctx, a.storage, a.static, server.Options{
		MediaPrefix:  a.cfg.HTTP.MediaPrefix,
		StaticPrefix: a.cfg.HTTP.StaticPrefix,
		MaxAge:       a.cfg.HTTP.MaxAge,
		StripVary:    a.cfg.HTTP.StripVary,
		Gzip:         a.cfg.HTTP.Gzip,
		RedirectTTL:  ttl,
	}, a.log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer srv.Close()

	return srv.ListenAndServe(ctx, a.cfg.HTTP.Listen)
}

// Close finishes the operation's run, if it was persisted, and closes all resources.
func (a *App) Close() error {
	var firstErr error

	if a.op.Persisted() {
		run := &dedupe.Run{
			ID:      a.op.ID,
			Status:  a.op.Status,
			Updated: a.op.Updated,
			Skipped: a.op.Skipped,
			Errors:  a.op.Errors,
		}
		if err := a.db.FinishRun(context.Background(), run, a.clock.Now()); err != nil {
			firstErr = err
		}
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// ParseAssetFields parses FIELD=NAME arguments. An empty NAME leaves the field unset.
func ParseAssetFields(args []string) (map[string]string, error) {
	files := make(map[string]string, len(args))
	for _, arg := range args {
		field, name, ok := strings.Cut(arg, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid field %q, expected FIELD=NAME", arg)
		}
		if _, dup := files[field]; dup {
			return nil, fmt.Errorf("field %s given more than once", field)
		}
		files[field] = name
	}
	return files, nil
}
