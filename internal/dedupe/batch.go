package dedupe

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
)

// Result holds the counters of a deduplication run. Every processed asset
// is counted exactly once.
type Result struct {
	Updated     int
	Skipped     int
	Errors      int
	Interrupted bool
}

// Processed returns the number of assets counted so far.
func (r Result) Processed() int {
	return r.Updated + r.Skipped + r.Errors
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeUpdated
	outcomeError
)

// Deduplicator re-saves the files referenced by existing assets through a
// UniqueStorage, migrating a legacy corpus to unique names. Runs are
// resumable: assets whose files are already unique are skipped.
type Deduplicator struct {
	storage  *UniqueStorage
	catalog  AssetCatalog
	logger   Logger
	progress func(Result)
}

// NewDeduplicator creates a Deduplicator.
func NewDeduplicator(storage *UniqueStorage, catalog AssetCatalog, logger Logger) *Deduplicator {
	return &Deduplicator{
		storage: storage,
		catalog: catalog,
		logger:  logger,
	}
}

// OnProgress registers fn to be called with the running counters after each asset.
func (d *Deduplicator) OnProgress(fn func(Result)) {
	d.progress = fn
}

// Run deduplicates the given collections, or all collections if none are
// given. Assets are processed newest first.
//
// Cancelling ctx stops the run at the next asset boundary: the asset being
// processed is always finished first, so no asset is left half migrated.
// Per-asset failures are logged and counted, never returned; only failures
// to enumerate the catalog abort the run.
func (d *Deduplicator) Run(ctx context.Context, collections ...string) (Result, error) {
	var result Result

	if len(collections) == 0 {
		all, err := d.catalog.Collections(ctx)
		if err != nil {
			return result, fmt.Errorf("listing collections: %w", err)
		}
		collections = all
	}

	// Items run to completion even after cancellation.
	itemCtx := context.WithoutCancel(ctx)

outer:
	for _, collection := range collections {
		if ctx.Err() != nil {
			result.Interrupted = true
			break
		}

		ids, err := d.catalog.AssetIDs(ctx, collection)
		if err != nil {
			return result, fmt.Errorf("listing assets in %s: %w", collection, err)
		}

		collectionUpdated := 0
		for _, id := range ids {
			if ctx.Err() != nil {
				result.Interrupted = true
				break outer
			}

			switch d.processAsset(itemCtx, collection, id, result.Updated) {
			case outcomeUpdated:
				result.Updated++
				collectionUpdated++
			case outcomeError:
				result.Errors++
			default:
				result.Skipped++
			}

			if d.progress != nil {
				d.progress(result)
			}
		}

		d.logger.Info("collection deduplicated", "collection", collection, "assets", len(ids), "updated", collectionUpdated)
	}

	if result.Interrupted {
		d.logger.Warn("deduplication interrupted", "updated", result.Updated, "skipped", result.Skipped, "errors", result.Errors)
	} else {
		d.logger.Info("deduplication complete", "updated", result.Updated, "skipped", result.Skipped, "errors", result.Errors)
	}
	return result, nil
}

// processAsset deduplicates every file field of one asset.
func (d *Deduplicator) processAsset(ctx context.Context, collection string, id int64, updatedSoFar int) outcome {
	asset, err := d.catalog.GetAsset(ctx, id)
	if err != nil {
		d.logger.Error("loading asset", "collection", collection, "id", id, "error", err)
		return outcomeError
	}
	if asset == nil {
		return outcomeSkipped
	}

	fields := make([]string, 0, len(asset.Files))
	for field := range asset.Files {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	failed := false
	var replaced []string
	for _, field := range fields {
		current := asset.Files[field]
		if current == "" {
			continue
		}

		uniqueName, err := d.dedupeName(ctx, current)
		if err != nil {
			d.logger.Error("unable to deduplicate",
				"collection", collection, "id", id, "field", field, "name", current, "error", err)
			failed = true
			continue
		}
		if uniqueName == current {
			continue
		}

		asset.Files[field] = uniqueName
		replaced = append(replaced, current)
		d.logger.Debug("file deduplicated",
			"n", updatedSoFar+1, "collection", collection, "id", id, "field", field,
			"name", current, "unique_name", uniqueName)
	}

	if len(replaced) > 0 {
		if err := d.catalog.UpdateAssetFiles(ctx, asset); err != nil {
			d.logger.Error("updating asset", "collection", collection, "id", id, "error", err)
			return outcomeError
		}
		for _, name := range replaced {
			d.removeOriginal(ctx, name)
		}
	}

	switch {
	case failed:
		return outcomeError
	case len(replaced) > 0:
		return outcomeUpdated
	default:
		return outcomeSkipped
	}
}

// dedupeName returns the unique name for the file currently stored under name.
func (d *Deduplicator) dedupeName(ctx context.Context, name string) (string, error) {
	rec, err := d.storage.records.LatestByUniqueName(ctx, name)
	if err != nil {
		return "", fmt.Errorf("looking up unique name: %w", err)
	}
	if rec != nil {
		return name, nil
	}

	// A record for this original name means an earlier save already migrated
	// it; adopt that name as long as its blob is still there.
	rec, err = d.storage.records.LatestByOriginalName(ctx, name)
	if err != nil {
		return "", fmt.Errorf("looking up original name: %w", err)
	}
	if rec != nil {
		exists, err := d.storage.blobs.Exists(ctx, rec.UniqueName)
		if err != nil {
			return "", fmt.Errorf("checking recorded blob: %w", err)
		}
		if exists {
			return rec.UniqueName, nil
		}
	}

	exists, err := d.storage.blobs.Exists(ctx, name)
	if err != nil {
		return "", fmt.Errorf("checking blob: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrMissingBlob, name)
	}

	r, err := d.storage.blobs.Open(ctx, name)
	if err != nil {
		return "", fmt.Errorf("opening blob: %w", err)
	}
	defer r.Close()

	return d.storage.Save(ctx, name, r)
}

// removeOriginal deletes a migrated blob and, for local stores, its parent
// directory if that is now empty. Failures are logged and otherwise ignored.
func (d *Deduplicator) removeOriginal(ctx context.Context, name string) {
	if err := d.storage.blobs.Delete(ctx, name); err != nil {
		d.logger.Warn("deleting original blob", "name", name, "error", err)
		return
	}

	lp, ok := d.storage.blobs.(LocalPather)
	if !ok || path.Dir(name) == "." {
		return
	}
	p, err := lp.Path(name)
	if err != nil {
		return
	}
	// Fails unless the directory is empty.
	_ = os.Remove(filepath.Dir(p))
}
