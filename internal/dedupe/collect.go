package dedupe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
)

// DefaultField is the asset field collected files are registered under.
const DefaultField = "file"

// CollectOptions controls a Collect call.
type CollectOptions struct {
	Collection string
	Field      string // defaults to DefaultField
	Prefix     string // prepended to each file's relative path
	Plain      bool   // store under the original name instead of a unique one
}

// CollectResult counts the outcome of a Collect call.
type CollectResult struct {
	Saved int
	// Vanished counts files removed between discovery and reading.
	Vanished int
	// MissingReferences counts stylesheet references to files that were not
	// collected. They are left as written.
	MissingReferences int
	Errors            int
	Interrupted       bool
}

// Collector saves the files of a local directory into a storage and
// registers one asset per file.
type Collector struct {
	fsmgr   FilesystemManager
	unique  *UniqueStorage
	plain   Storage
	catalog AssetCatalog
	clock   Clock
	logger  Logger
}

// NewCollector creates a Collector. plain is used when CollectOptions.Plain
// is set and may be nil otherwise.
func NewCollector(fsmgr FilesystemManager, unique *UniqueStorage, plain Storage, catalog AssetCatalog, clock Clock, logger Logger) *Collector {
	return &Collector{
		fsmgr:   fsmgr,
		unique:  unique,
		plain:   plain,
		catalog: catalog,
		clock:   clock,
		logger:  logger,
	}
}

// stylesheet is a collected stylesheet waiting for its references to be
// rewritten.
type stylesheet struct {
	file    *Path
	name    string
	content string
	targets []string
}

// Collect saves every file under dir. Files that disappear between
// discovery and reading are logged and counted as vanished; other per-file
// failures are counted as errors and do not stop the walk.
//
// Unless opts.Plain is set, stylesheets are saved last, with every url() and
// @import reference to a collected file rewritten to that file's unique
// name. A reference to a file that was not collected is logged as a warning
// and left unchanged.
func (c *Collector) Collect(ctx context.Context, dir *Path, opts CollectOptions) (CollectResult, error) {
	var result CollectResult

	if opts.Collection == "" {
		return result, fmt.Errorf("collection name required")
	}
	if opts.Field == "" {
		opts.Field = DefaultField
	}
	if !dir.IsDir() {
		return result, fmt.Errorf("not a directory: %s", dir.String())
	}

	var storage Storage = c.unique
	if opts.Plain {
		if c.plain == nil {
			return result, fmt.Errorf("plain storage not configured")
		}
		storage = c.plain
	}

	files, err := c.fsmgr.FindFiles(dir)
	if err != nil {
		return result, fmt.Errorf("finding files: %w", err)
	}

	itemCtx := context.WithoutCancel(ctx)
	stored := make(map[string]string, len(files))
	var sheets []*stylesheet
	for _, file := range files {
		if ctx.Err() != nil {
			result.Interrupted = true
			break
		}

		rel, err := filepath.Rel(dir.String(), file.String())
		if err != nil || strings.HasPrefix(rel, "..") {
			c.logger.Error("file outside collected directory", "path", file.String())
			result.Errors++
			continue
		}
		name := filepath.ToSlash(rel)
		if opts.Prefix != "" {
			name = strings.Trim(opts.Prefix, "/") + "/" + name
		}

		if !opts.Plain && IsStylesheet(name) {
			sheets = append(sheets, &stylesheet{file: file, name: name})
			continue
		}

		storedName, err := c.collectFile(itemCtx, storage, file, name)
		if err != nil {
			c.fileFailed(file, err, &result)
			continue
		}
		stored[name] = storedName
		c.register(itemCtx, opts, storedName, &result)
	}

	if !result.Interrupted && len(sheets) > 0 {
		c.collectStylesheets(ctx, sheets, stored, opts, &result)
	}

	c.logger.Info("collect finished",
		"collection", opts.Collection,
		"saved", result.Saved,
		"vanished", result.Vanished,
		"missing_references", result.MissingReferences,
		"errors", result.Errors,
	)
	return result, nil
}

// collectStylesheets saves sheets once the files they reference are stored.
// A stylesheet importing another waits for it; stylesheets that import each
// other are saved in walk order.
func (c *Collector) collectStylesheets(ctx context.Context, sheets []*stylesheet, stored map[string]string, opts CollectOptions, result *CollectResult) {
	itemCtx := context.WithoutCancel(ctx)

	var pending []*stylesheet
	for _, sheet := range sheets {
		if ctx.Err() != nil {
			result.Interrupted = true
			return
		}
		content, err := c.readFile(sheet.file)
		if err != nil {
			c.fileFailed(sheet.file, err, result)
			continue
		}
		sheet.content = content
		rewriteReferences(content, func(ref string) string {
			if target, _, ok := referenceTarget(sheet.name, ref); ok && target != sheet.name {
				sheet.targets = append(sheet.targets, target)
			}
			return ref
		})
		pending = append(pending, sheet)
	}

	for len(pending) > 0 {
		waiting := make(map[string]bool, len(pending))
		for _, sheet := range pending {
			waiting[sheet.name] = true
		}
		var ready, blocked []*stylesheet
		for _, sheet := range pending {
			if sheet.waitsOn(waiting) {
				blocked = append(blocked, sheet)
			} else {
				ready = append(ready, sheet)
			}
		}
		if len(ready) == 0 {
			ready, blocked = blocked, nil
		}

		for _, sheet := range ready {
			if ctx.Err() != nil {
				result.Interrupted = true
				return
			}
			css := c.rewriteStylesheet(sheet, stored, result)
			storedName, err := c.unique.Save(itemCtx, sheet.name, strings.NewReader(css))
			if err != nil {
				c.logger.Error("collecting file failed", "path", sheet.file.String(), "error", err)
				result.Errors++
				continue
			}
			stored[sheet.name] = storedName
			c.register(itemCtx, opts, storedName, result)
		}
		pending = blocked
	}
}

func (s *stylesheet) waitsOn(waiting map[string]bool) bool {
	for _, target := range s.targets {
		if waiting[target] {
			return true
		}
	}
	return false
}

// rewriteStylesheet points every reference in sheet at the stored name of
// the file it references.
func (c *Collector) rewriteStylesheet(sheet *stylesheet, stored map[string]string, result *CollectResult) string {
	dir := c.unique.Options().Dir(sheet.name)
	return rewriteReferences(sheet.content, func(ref string) string {
		target, suffix, ok := referenceTarget(sheet.name, ref)
		if !ok {
			return ref
		}
		storedName, found := stored[target]
		if !found {
			c.logger.Warn("referenced file not found, leaving reference unchanged",
				"stylesheet", sheet.name, "reference", ref)
			result.MissingReferences++
			return ref
		}
		return relativeReference(dir, storedName) + suffix
	})
}

func (c *Collector) register(ctx context.Context, opts CollectOptions, storedName string, result *CollectResult) {
	asset := &Asset{
		Collection: opts.Collection,
		Files:      map[string]string{opts.Field: storedName},
		CreatedAt:  c.clock.Now(),
	}
	if err := c.catalog.CreateAsset(ctx, asset); err != nil {
		c.logger.Error("registering asset failed", "name", storedName, "error", err)
		result.Errors++
		return
	}
	result.Saved++
}

func (c *Collector) fileFailed(file *Path, err error, result *CollectResult) {
	if errors.Is(err, fs.ErrNotExist) {
		c.logger.Warn("file vanished before it could be read, skipping", "path", file.String())
		result.Vanished++
		return
	}
	c.logger.Error("collecting file failed", "path", file.String(), "error", err)
	result.Errors++
}

func (c *Collector) readFile(file *Path) (string, error) {
	f, err := c.fsmgr.Open(file)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *Collector) collectFile(ctx context.Context, storage Storage, file *Path, name string) (string, error) {
	f, err := c.fsmgr.Open(file)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return storage.Save(ctx, name, f)
}
