package dedupe_test

import (
	"context"
	"testing"

	"dedupe-go/internal/blobstore"
	"dedupe-go/internal/dedupe"
	"dedupe-go/internal/testutil"
)

type collectFixture struct {
	ts    *testutil.TestStorage
	fsmgr *testutil.MockFilesystemManager
	plain *blobstore.MemoryStore
	c     *dedupe.Collector
}

func newCollectFixture(t *testing.T) *collectFixture {
	t.Helper()

	ts := testutil.NewTestStorage(t)
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddDirectory("/data/site")
	fsmgr.AddFile("/data/site/img/a.jpg", []byte("jpeg bytes"))
	fsmgr.AddFile("/data/site/notes.txt", []byte("notes"))

	plain := blobstore.NewMemoryStore()
	c := dedupe.NewCollector(fsmgr, ts.UniqueStorage, dedupe.NewPlainStorage(plain), ts.DB, ts.Clock, dedupe.NewNopLogger())
	return &collectFixture{ts: ts, fsmgr: fsmgr, plain: plain, c: c}
}

func (f *collectFixture) dir(t *testing.T) *dedupe.Path {
	t.Helper()
	dir, err := f.fsmgr.Resolve("/data/site")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return dir
}

func (f *collectFixture) collectedNames(t *testing.T, collection string) []string {
	t.Helper()
	ctx := context.Background()

	ids, err := f.ts.DB.AssetIDs(ctx, collection)
	if err != nil {
		t.Fatalf("AssetIDs() error = %v", err)
	}
	var names []string
	for _, id := range ids {
		asset, err := f.ts.DB.GetAsset(ctx, id)
		if err != nil || asset == nil {
			t.Fatalf("GetAsset(%d) = %v, %v", id, asset, err)
		}
		names = append(names, asset.Files[dedupe.DefaultField])
	}
	return names
}

func TestCollector_Collect(t *testing.T) {
	f := newCollectFixture(t)

	result, err := f.c.Collect(context.Background(), f.dir(t), dedupe.CollectOptions{Collection: "site"})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if result.Saved != 2 || result.Vanished != 0 || result.Errors != 0 {
		t.Errorf("Collect() = %+v, want 2 saved", result)
	}

	names := f.collectedNames(t, "site")
	// Newest first.
	want := []string{
		"dd/" + testutil.MD5Hex([]byte("notes")) + ".txt",
		"dd/img/" + testutil.MD5Hex([]byte("jpeg bytes")) + ".jpg",
	}
	if len(names) != 2 || names[0] != want[0] || names[1] != want[1] {
		t.Errorf("collected = %v, want %v", names, want)
	}

	original, _ := f.ts.OriginalName(context.Background(), want[1])
	if original != "img/a.jpg" {
		t.Errorf("OriginalName() = %q, want img/a.jpg", original)
	}
}

func TestCollector_VanishedFile(t *testing.T) {
	f := newCollectFixture(t)
	f.fsmgr.Vanish("/data/site/img/a.jpg")

	result, err := f.c.Collect(context.Background(), f.dir(t), dedupe.CollectOptions{Collection: "site"})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if result.Saved != 1 || result.Vanished != 1 || result.Errors != 0 {
		t.Errorf("Collect() = %+v, want 1 saved and 1 vanished", result)
	}
}

func TestCollector_Plain(t *testing.T) {
	f := newCollectFixture(t)

	result, err := f.c.Collect(context.Background(), f.dir(t), dedupe.CollectOptions{Collection: "site", Plain: true})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if result.Saved != 2 {
		t.Errorf("Collect() = %+v, want 2 saved", result)
	}

	names := f.plain.Names()
	if len(names) != 2 || names[0] != "img/a.jpg" || names[1] != "notes.txt" {
		t.Errorf("plain blobs = %v", names)
	}
	if n := len(f.ts.Blobs.Names()); n != 0 {
		t.Errorf("unique blobs = %d, want 0", n)
	}
}

func TestCollector_FieldAndPrefix(t *testing.T) {
	f := newCollectFixture(t)

	_, err := f.c.Collect(context.Background(), f.dir(t), dedupe.CollectOptions{
		Collection: "site",
		Field:      "image",
		Prefix:     "/uploads/",
	})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	ids, _ := f.ts.DB.AssetIDs(context.Background(), "site")
	asset, _ := f.ts.DB.GetAsset(context.Background(), ids[len(ids)-1])
	want := "dd/uploads/img/" + testutil.MD5Hex([]byte("jpeg bytes")) + ".jpg"
	if got := asset.Files["image"]; got != want {
		t.Errorf("image = %q, want %q", got, want)
	}
}

func TestCollector_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("collection required", func(t *testing.T) {
		f := newCollectFixture(t)
		if _, err := f.c.Collect(ctx, f.dir(t), dedupe.CollectOptions{}); err == nil {
			t.Error("Collect() error = nil, want error")
		}
	})

	t.Run("not a directory", func(t *testing.T) {
		f := newCollectFixture(t)
		file, _ := f.fsmgr.Resolve("/data/site/notes.txt")
		if _, err := f.c.Collect(ctx, file, dedupe.CollectOptions{Collection: "site"}); err == nil {
			t.Error("Collect() error = nil, want error")
		}
	})

	t.Run("plain storage missing", func(t *testing.T) {
		f := newCollectFixture(t)
		c := dedupe.NewCollector(f.fsmgr, f.ts.UniqueStorage, nil, f.ts.DB, f.ts.Clock, dedupe.NewNopLogger())
		if _, err := c.Collect(ctx, f.dir(t), dedupe.CollectOptions{Collection: "site", Plain: true}); err == nil {
			t.Error("Collect() error = nil, want error")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		f := newCollectFixture(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		result, err := f.c.Collect(cctx, f.dir(t), dedupe.CollectOptions{Collection: "site"})
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		if !result.Interrupted || result.Saved != 0 {
			t.Errorf("Collect() = %+v, want interrupted before saving", result)
		}
	})
}

func TestCollector_Stylesheets(t *testing.T) {
	ctx := context.Background()
	f := newCollectFixture(t)

	f.fsmgr.AddFile("/data/site/css/site.css", []byte(`@import "theme.css";
body { background: url("../img/a.jpg?v=2"); }
.logo { background: url(../img/missing.png); }
@font-face { src: url(//cdn.example.com/f.woff), url(https://example.com/f.ttf); }
.dot { background: url(data:image/png;base64,AAAA); }
.fill { fill: url(#gradient); }
`))
	f.fsmgr.AddFile("/data/site/css/theme.css", []byte("h1 { background: url(../img/a.jpg); }\n"))

	result, err := f.c.Collect(ctx, f.dir(t), dedupe.CollectOptions{Collection: "site"})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if result.Saved != 4 || result.MissingReferences != 1 || result.Vanished != 0 || result.Errors != 0 {
		t.Errorf("Collect() = %+v, want 4 saved and 1 missing reference", result)
	}

	image := testutil.MD5Hex([]byte("jpeg bytes")) + ".jpg"
	theme := "h1 { background: url(../img/" + image + "); }\n"
	themeName := testutil.MD5Hex([]byte(theme)) + ".css"
	site := `@import "` + themeName + `";
body { background: url("../img/` + image + `?v=2"); }
.logo { background: url(../img/missing.png); }
@font-face { src: url(//cdn.example.com/f.woff), url(https://example.com/f.ttf); }
.dot { background: url(data:image/png;base64,AAAA); }
.fill { fill: url(#gradient); }
`

	if got := readBlob(t, f.ts, "dd/css/"+themeName); got != theme {
		t.Errorf("theme.css = %q, want %q", got, theme)
	}
	siteName := "dd/css/" + testutil.MD5Hex([]byte(site)) + ".css"
	if got := readBlob(t, f.ts, siteName); got != site {
		t.Errorf("site.css = %q, want %q", got, site)
	}

	original, _ := f.ts.OriginalName(ctx, siteName)
	if original != "css/site.css" {
		t.Errorf("OriginalName() = %q, want css/site.css", original)
	}
	if names := f.collectedNames(t, "site"); len(names) != 4 || names[0] != siteName {
		t.Errorf("collected = %v, want site.css registered last", names)
	}
}

func TestCollector_StylesheetsWithPrefix(t *testing.T) {
	f := newCollectFixture(t)
	f.fsmgr.AddFile("/data/site/site.css", []byte("a { background: url(img/a.jpg); }"))

	result, err := f.c.Collect(context.Background(), f.dir(t), dedupe.CollectOptions{Collection: "site", Prefix: "static"})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if result.MissingReferences != 0 {
		t.Errorf("Collect() = %+v, want every reference resolved", result)
	}

	css := "a { background: url(img/" + testutil.MD5Hex([]byte("jpeg bytes")) + ".jpg); }"
	name := "dd/static/" + testutil.MD5Hex([]byte(css)) + ".css"
	if got := readBlob(t, f.ts, name); got != css {
		t.Errorf("site.css = %q, want %q", got, css)
	}
}

func TestCollector_StylesheetsImportingEachOther(t *testing.T) {
	f := newCollectFixture(t)
	f.fsmgr.AddFile("/data/site/a.css", []byte(`@import "b.css";`))
	f.fsmgr.AddFile("/data/site/b.css", []byte(`@import "a.css";`))

	result, err := f.c.Collect(context.Background(), f.dir(t), dedupe.CollectOptions{Collection: "site"})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	// a.css is saved first, before b.css has a stored name.
	if result.Saved != 4 || result.MissingReferences != 1 || result.Errors != 0 {
		t.Errorf("Collect() = %+v, want 4 saved and 1 missing reference", result)
	}
}

func TestCollector_PlainStylesheetsAreNotRewritten(t *testing.T) {
	f := newCollectFixture(t)
	css := "a { background: url(img/a.jpg); } b { background: url(gone.png); }"
	f.fsmgr.AddFile("/data/site/site.css", []byte(css))

	result, err := f.c.Collect(context.Background(), f.dir(t), dedupe.CollectOptions{Collection: "site", Plain: true})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if result.Saved != 3 || result.MissingReferences != 0 {
		t.Errorf("Collect() = %+v, want 3 saved", result)
	}
	if got := readBlob(t, dedupe.NewPlainStorage(f.plain), "site.css"); got != css {
		t.Errorf("site.css = %q, want it unchanged", got)
	}
}

func TestCollector_VanishedStylesheet(t *testing.T) {
	f := newCollectFixture(t)
	f.fsmgr.AddFile("/data/site/site.css", []byte("a { color: red; }"))
	f.fsmgr.Vanish("/data/site/site.css")

	result, err := f.c.Collect(context.Background(), f.dir(t), dedupe.CollectOptions{Collection: "site"})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if result.Saved != 2 || result.Vanished != 1 || result.Errors != 0 {
		t.Errorf("Collect() = %+v, want 2 saved and 1 vanished", result)
	}
}
