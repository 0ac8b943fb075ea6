package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dedupe-go/internal/config"
	"dedupe-go/internal/dedupe"
	"dedupe-go/internal/testutil"
)

// newTestConfig returns a config using in-memory storage and database.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.Storage = config.StorageConfig{Type: "memory"}
	cfg.Database = config.DatabaseConfig{Type: "memory"}
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, operation string) *App {
	t.Helper()
	a, err := NewApp(context.Background(), cfg, operation, Options{
		Console: io.Discard,
		Clock:   testutil.FixedClock(),
		IDs:     testutil.NewStubIDGenerator(),
	})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	return a
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestApp_SaveAndResolve(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, newTestConfig(t), "save")
	defer a.Close()

	path := writeFile(t, filepath.Join(t.TempDir(), "hello.txt"), "hello world")

	unique, err := a.Save(ctx, path, "")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if want := "dd/5eb63bbbe01eeed093cb22bb8f5acdc3.txt"; unique != want {
		t.Errorf("Save() = %q, want %q", unique, want)
	}

	original, err := a.ResolveOriginal(ctx, unique)
	if err != nil || original != "hello.txt" {
		t.Errorf("ResolveOriginal() = %q, %v; want hello.txt", original, err)
	}

	got, err := a.ResolveUnique(ctx, "hello.txt")
	if err != nil || got != unique {
		t.Errorf("ResolveUnique() = %q, %v; want %q", got, err, unique)
	}

	if _, err := a.ResolveUnique(ctx, "never-saved.txt"); !dedupe.IsNotFound(err) {
		t.Errorf("ResolveUnique() error = %v, want not found", err)
	}

	records, err := a.Log(ctx, "hello.txt", 10)
	if err != nil || len(records) != 1 {
		t.Errorf("Log() = %d records, %v; want 1", len(records), err)
	}
}

func TestApp_SaveWithName(t *testing.T) {
	a := newTestApp(t, newTestConfig(t), "save")
	defer a.Close()

	path := writeFile(t, filepath.Join(t.TempDir(), "tmp123"), "jpeg")

	unique, err := a.Save(context.Background(), path, "photos/cat.jpeg")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !strings.HasPrefix(unique, "dd/photos/") || !strings.HasSuffix(unique, ".jpg") {
		t.Errorf("Save() = %q, want dd/photos/<hash>.jpg", unique)
	}
}

func TestApp_SaveDirectoryFails(t *testing.T) {
	a := newTestApp(t, newTestConfig(t), "save")
	defer a.Close()

	if _, err := a.Save(context.Background(), t.TempDir(), ""); err == nil {
		t.Error("Save() error = nil for a directory")
	}
	if a.op.Status != StatusError {
		t.Errorf("Status = %q, want %q", a.op.Status, StatusError)
	}
}

func TestApp_CollectThenDedupe(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, newTestConfig(t), "collect")
	defer a.Close()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "img", "a.jpg"), "jpeg")
	writeFile(t, filepath.Join(dir, "b.txt"), "text")
	writeFile(t, filepath.Join(dir, ".DS_Store"), "junk")

	collected, err := a.Collect(ctx, dir, dedupe.CollectOptions{Collection: "legacy", Plain: true})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if collected.Saved != 2 {
		t.Errorf("Collect() = %+v, want 2 saved", collected)
	}

	var calls int
	result, err := a.Dedupe(ctx, func(dedupe.Result) { calls++ })
	if err != nil {
		t.Fatalf("Dedupe() error = %v", err)
	}
	if result.Updated != 2 || result.Errors != 0 {
		t.Errorf("Dedupe() = %+v, want 2 updated", result)
	}
	if calls != 2 {
		t.Errorf("progress called %d times, want 2", calls)
	}

	result, err = a.Dedupe(ctx, nil, "legacy")
	if err != nil {
		t.Fatalf("second Dedupe() error = %v", err)
	}
	if result.Updated != 0 || result.Skipped != 2 {
		t.Errorf("second Dedupe() = %+v, want 2 skipped", result)
	}

	original, _ := a.ResolveOriginal(ctx, "dd/img/"+testutil.MD5Hex([]byte("jpeg"))+".jpg")
	if original != "img/a.jpg" {
		t.Errorf("ResolveOriginal() = %q, want img/a.jpg", original)
	}
}

func TestApp_AddAsset(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t, newTestConfig(t), "asset add")
	defer a.Close()

	asset, err := a.AddAsset(ctx, "photos", map[string]string{"file": "uploads/a.jpg", "thumb": ""})
	if err != nil {
		t.Fatalf("AddAsset() error = %v", err)
	}
	if asset.ID == 0 {
		t.Error("AddAsset() did not assign an ID")
	}

	tests := []struct {
		name       string
		collection string
		files      map[string]string
	}{
		{"no collection", "", map[string]string{"file": "a.jpg"}},
		{"no fields", "photos", nil},
		{"escaping name", "photos", map[string]string{"file": "../a.jpg"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.AddAsset(ctx, tt.collection, tt.files); err == nil {
				t.Error("AddAsset() error = nil, want error")
			}
		})
	}
}

func TestApp_RunHistory(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewConfig(t.TempDir())
	cfg.Storage = config.StorageConfig{Type: "memory"}

	if _, err := NewApp(ctx, cfg, "save", Options{Console: io.Discard}); err == nil {
		t.Fatal("NewApp() error = nil before migrating")
	}
	if err := Migrate(ctx, cfg); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	a := newTestApp(t, cfg, "save")
	path := writeFile(t, filepath.Join(t.TempDir(), "a.txt"), "a")
	if _, err := a.Save(ctx, path, ""); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Read-only operations leave no run behind.
	reader := newTestApp(t, cfg, "history")
	defer reader.Close()

	runs, err := reader.History(ctx, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("History() = %d runs, want 1", len(runs))
	}
	run := runs[0]
	if run.Operation != "save" || run.RunID != "run-1" || run.Status != StatusSuccess || run.Updated != 1 {
		t.Errorf("run = %+v", run)
	}
	if !run.FinishedAt.Valid {
		t.Error("run was not finished")
	}
}

func TestApp_BackupDatabase(t *testing.T) {
	ctx := context.Background()
	cfg := config.NewConfig(t.TempDir())
	cfg.Storage = config.StorageConfig{Type: "memory"}
	if err := Migrate(ctx, cfg); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	a := newTestApp(t, cfg, "backup")
	defer a.Close()

	dest := filepath.Join(t.TempDir(), "snapshot.db")
	if err := a.BackupDatabase(dest); err != nil {
		t.Fatalf("BackupDatabase() error = %v", err)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("snapshot missing: %v", err)
	}
	if err := a.BackupDatabase(dest); err == nil {
		t.Error("BackupDatabase() overwrote an existing file")
	}
}

func TestNewApp_InvalidConfig(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.HTTP.MediaPrefix = "/"

	if _, err := NewApp(context.Background(), cfg, "serve", Options{Console: io.Discard}); err == nil {
		t.Error("NewApp() error = nil for an invalid config")
	}
}

func TestNameOptions(t *testing.T) {
	opts := nameOptions(config.DedupeConfig{})
	if opts.Prefix != dedupe.DefaultPathPrefix || opts.HashLength != dedupe.DefaultHashLength {
		t.Errorf("nameOptions(empty) = %+v, want defaults", opts)
	}

	opts = nameOptions(config.DedupeConfig{
		PathPrefix:   "/unique/",
		HashLength:   12,
		KeepBasename: true,
		Extensions:   map[string]string{".tiff": ".tif"},
	})
	if opts.Prefix != "unique" || opts.HashLength != 12 || !opts.KeepBasename {
		t.Errorf("nameOptions() = %+v", opts)
	}
	if opts.Extensions[".tiff"] != ".tif" || opts.Extensions[".jpeg"] != ".jpg" {
		t.Errorf("Extensions = %v, want defaults merged with .tiff", opts.Extensions)
	}
}

func TestParseAssetFields(t *testing.T) {
	got, err := ParseAssetFields([]string{"file=uploads/a.jpg", "thumb=", "caption=a=b"})
	if err != nil {
		t.Fatalf("ParseAssetFields() error = %v", err)
	}
	want := map[string]string{"file": "uploads/a.jpg", "thumb": "", "caption": "a=b"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("field %s = %q, want %q", k, got[k], v)
		}
	}

	for _, bad := range [][]string{{"file"}, {"=a.jpg"}, {"file=a", "file=b"}} {
		if _, err := ParseAssetFields(bad); err == nil {
			t.Errorf("ParseAssetFields(%v) error = nil", bad)
		}
	}
}
