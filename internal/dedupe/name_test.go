package dedupe

import (
	"errors"
	"path"
	"testing"
)

// md5("a")
const testHash = "0cc175b9c0f1b6a831c399e269772661"

func TestNameOptions_Derive(t *testing.T) {
	defaults := DefaultNameOptions()
	keep := DefaultNameOptions()
	keep.KeepBasename = true
	noPrefix := DefaultNameOptions()
	noPrefix.Prefix = ""

	tests := []struct {
		name string
		opts NameOptions
		in   string
		want string
	}{
		{"top level file", defaults, "photo.png", "dd/" + testHash + ".png"},
		{"keeps directory", defaults, "images/2020/photo.png", "dd/images/2020/" + testHash + ".png"},
		{"lowercases extension", defaults, "photo.PNG", "dd/" + testHash + ".png"},
		{"aliases jpeg", defaults, "photo.JPEG", "dd/" + testHash + ".jpg"},
		{"aliases yaml", defaults, "conf/app.yaml", "dd/conf/" + testHash + ".yml"},
		{"no extension", defaults, "README", "dd/" + testHash},
		{"dotfile has no extension", defaults, ".env", "dd/" + testHash},
		{"only last extension counts", defaults, "backup.tar.gz", "dd/" + testHash + ".gz"},
		{"cleans the path", defaults, "./a/../b/photo.png", "dd/b/" + testHash + ".png"},
		{"already unique is idempotent", defaults, "dd/images/" + testHash + ".jpg", "dd/images/" + testHash + ".jpg"},
		{"prefix only stripped as a whole segment", defaults, "ddx/photo.png", "dd/ddx/" + testHash + ".png"},
		{"no prefix", noPrefix, "images/photo.jpeg", "images/" + testHash + ".jpg"},

		{"keep basename", keep, "images/photo.jpeg", "dd/images/photo.0cc175b.jpg"},
		{"keep basename is idempotent", keep, "dd/images/photo.0cc175b.jpg", "dd/images/photo.0cc175b.jpg"},
		{"keep basename replaces a stale hash", keep, "dd/images/photo.deadbee.jpg", "dd/images/photo.0cc175b.jpg"},
		{"keep basename leaves other dotted parts", keep, "v1.2.tar.gz", "dd/v1.2.tar.0cc175b.gz"},
		{"keep basename dotfile", keep, ".env", "dd/.env.0cc175b"},
		{"keep basename replaces a longer hash", keep, "dd/images/photo.0cc175b9c0f1.jpg", "dd/images/photo.0cc175b.jpg"},
		{"keep basename replaces a full hash", keep, "dd/images/photo." + testHash + ".jpg", "dd/images/photo.0cc175b.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.Derive(tt.in, testHash); got != tt.want {
				t.Errorf("Derive(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNameOptions_Derive_HashLength(t *testing.T) {
	opts := DefaultNameOptions()
	opts.KeepBasename = true

	tests := []struct {
		length int
		want   string
	}{
		{12, "dd/photo.0cc175b9c0f1.jpg"},
		{0, "dd/photo.0cc175b.jpg"},
		{99, "dd/photo.0cc175b.jpg"},
	}
	for _, tt := range tests {
		opts.HashLength = tt.length
		if got := opts.Derive("photo.jpg", testHash); got != tt.want {
			t.Errorf("Derive() with length %d = %q, want %q", tt.length, got, tt.want)
		}
	}

	// Re-deriving under a different length replaces the segment instead of
	// nesting a second one.
	for _, lengths := range [][2]int{{7, 12}, {12, 7}, {7, 32}, {32, 7}, {7, 4}} {
		opts.HashLength = lengths[0]
		first := opts.Derive("images/photo.jpg", testHash)
		opts.HashLength = lengths[1]
		again := opts.Derive(first, testHash)
		want := "dd/images/photo." + testHash[:lengths[1]] + ".jpg"
		if again != want {
			t.Errorf("Derive(%q) with length %d = %q, want %q", first, lengths[1], again, want)
		}
	}
}

func TestNameOptions_Dir(t *testing.T) {
	tests := []struct {
		prefix string
		in     string
		want   string
	}{
		{"dd", "css/site.css", "dd/css"},
		{"dd", "site.css", "dd"},
		{"dd", "dd/css/site.css", "dd/css"},
		{"", "css/site.css", "css"},
		{"", "site.css", ""},
	}
	for _, tt := range tests {
		opts := DefaultNameOptions()
		opts.Prefix = tt.prefix
		if got := opts.Dir(tt.in); got != tt.want {
			t.Errorf("Dir(%q) with prefix %q = %q, want %q", tt.in, tt.prefix, got, tt.want)
		}
		wantDir := tt.want
		if wantDir == "" {
			wantDir = "."
		}
		if derived := opts.Derive(tt.in, testHash); path.Dir(derived) != wantDir {
			t.Errorf("Derive(%q) = %q, not in Dir() %q", tt.in, derived, tt.want)
		}
	}
}

func TestNameOptions_WithExtensions(t *testing.T) {
	opts := DefaultNameOptions().WithExtensions(map[string]string{".TIFF": ".tif"})

	if got := opts.Derive("scan.tiff", testHash); got != "dd/"+testHash+".tif" {
		t.Errorf("Derive(scan.tiff) = %q, want .tif extension", got)
	}
	if got := opts.Derive("photo.jpeg", testHash); got != "dd/"+testHash+".jpg" {
		t.Errorf("Derive(photo.jpeg) = %q, want default alias kept", got)
	}
	if _, ok := DefaultExtensions[".tiff"]; ok {
		t.Error("WithExtensions() modified DefaultExtensions")
	}
}

func TestNameOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*NameOptions)
		wantErr bool
	}{
		{"defaults", func(*NameOptions) {}, false},
		{"absolute prefix", func(o *NameOptions) { o.Prefix = "/dd" }, true},
		{"escaping prefix", func(o *NameOptions) { o.Prefix = "../dd" }, true},
		{"hash length too long", func(o *NameOptions) { o.HashLength = 40 }, true},
		{"alias without dot", func(o *NameOptions) { o.Extensions = map[string]string{"jpeg": ".jpg"} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultNameOptions()
			tt.mutate(&opts)
			if err := opts.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStripHashSuffix(t *testing.T) {
	tests := []struct {
		stem string
		n    int
		want string
	}{
		{"photo.abcdef1", 7, "photo"},
		{"photo.abcdef123456", 7, "photo"},
		{"photo.0cc175b9c0f1b6a831c399e269772661", 7, "photo"},
		{"photo.0cc175b9c0f1b6a831c399e2697726610", 7, "photo.0cc175b9c0f1b6a831c399e2697726610"},
		{"photo.abcdef1", 12, "photo"},
		{"photo.abcd", 4, "photo"},
		{"photo.abc", 7, "photo.abc"},
		{"photo.ABCDEF1", 7, "photo.ABCDEF1"},
		{"v1.2", 7, "v1.2"},
		{"photo", 7, "photo"},
		{".abcdef1", 7, ".abcdef1"},
	}
	for _, tt := range tests {
		if got := stripHashSuffix(tt.stem, tt.n); got != tt.want {
			t.Errorf("stripHashSuffix(%q, %d) = %q, want %q", tt.stem, tt.n, got, tt.want)
		}
	}
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"photo.jpg", false},
		{"dd/images/photo.jpg", false},
		{"a..b/photo.jpg", false},
		{"", true},
		{"/etc/passwd", true},
		{"../photo.jpg", true},
		{"images/../../photo.jpg", true},
	}
	for _, tt := range tests {
		err := ValidateName(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) error = %v, want ErrInvalidName", tt.name, err)
		}
	}
}
