package dedupe

import "testing"

func TestRewriteReferences(t *testing.T) {
	tests := []struct {
		name string
		css  string
		want string
	}{
		{"bare url", "a{background:url(img/a.png)}", "a{background:url(<img/a.png>)}"},
		{"quoted url", `a{background:url("img/a.png")}`, `a{background:url("<img/a.png>")}`},
		{"single quotes and spaces", "a{background:url( 'img/a.png' )}", "a{background:url( '<img/a.png>' )}"},
		{"upper case", "a{background:URL(img/a.png)}", "a{background:URL(<img/a.png>)}"},
		{"import string", `@import "theme.css";`, `@import "<theme.css>";`},
		{"import url", `@import url(theme.css);`, `@import url(<theme.css>);`},
		{"several", "a{src:url(a.woff),url(b.ttf)}", "a{src:url(<a.woff>),url(<b.ttf>)}"},
		{"no references", "body{margin:0}", "body{margin:0}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rewriteReferences(tt.css, func(ref string) string { return "<" + ref + ">" })
			if got != tt.want {
				t.Errorf("rewriteReferences() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReferenceTarget(t *testing.T) {
	tests := []struct {
		ref        string
		wantTarget string
		wantSuffix string
		wantOK     bool
	}{
		{"../img/a.png", "static/img/a.png", "", true},
		{"fonts/a.woff?v=2#iefix", "static/css/fonts/a.woff", "?v=2#iefix", true},
		{"./theme.css", "static/css/theme.css", "", true},
		{"http://example.com/a.png", "", "", false},
		{"HTTPS://example.com/a.png", "", "", false},
		{"//cdn.example.com/a.png", "", "", false},
		{"#gradient", "", "", false},
		{"data:image/png;base64,AAAA", "", "", false},
		{"DATA:image/svg+xml;utf8,x", "", "", false},
		{"/static/img/a.png", "", "", false},
		{"?v=1", "", "", false},
	}
	for _, tt := range tests {
		target, suffix, ok := referenceTarget("static/css/site.css", tt.ref)
		if target != tt.wantTarget || suffix != tt.wantSuffix || ok != tt.wantOK {
			t.Errorf("referenceTarget(%q) = %q, %q, %v; want %q, %q, %v",
				tt.ref, target, suffix, ok, tt.wantTarget, tt.wantSuffix, tt.wantOK)
		}
	}
}

func TestRelativeReference(t *testing.T) {
	tests := []struct {
		dir, target, want string
	}{
		{"dd/css", "dd/img/abc.png", "../img/abc.png"},
		{"dd/css", "dd/css/abc.css", "abc.css"},
		{"dd", "dd/img/abc.png", "img/abc.png"},
		{"", "img/a.png", "img/a.png"},
	}
	for _, tt := range tests {
		if got := relativeReference(tt.dir, tt.target); got != tt.want {
			t.Errorf("relativeReference(%q, %q) = %q, want %q", tt.dir, tt.target, got, tt.want)
		}
	}
}

func TestIsStylesheet(t *testing.T) {
	for name, want := range map[string]bool{
		"css/site.css": true,
		"SITE.CSS":     true,
		"site.scss":    false,
		"css/app.js":   false,
	} {
		if got := IsStylesheet(name); got != want {
			t.Errorf("IsStylesheet(%q) = %v, want %v", name, got, want)
		}
	}
}
