package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"dedupe-go/internal/dedupe"
)

func TestMemoryStore_WriteOpen(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	tests := []struct {
		name    string
		content string
	}{
		{"abc123", "hello world"},
		{"empty", ""},
		{"dd/large.bin", strings.Repeat("x", 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Write(ctx, tt.name, strings.NewReader(tt.content)); err != nil {
				t.Fatalf("Write() error = %v", err)
			}

			rc, err := m.Open(ctx, tt.name)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer rc.Close()

			got, _ := io.ReadAll(rc)
			if string(got) != tt.content {
				t.Errorf("content length = %d, want %d", len(got), len(tt.content))
			}
		})
	}

	if m.Writes() != len(tests) {
		t.Errorf("Writes() = %d, want %d", m.Writes(), len(tests))
	}
	if names := m.Names(); len(names) != 3 || names[0] != "abc123" {
		t.Errorf("Names() = %v, want sorted names", names)
	}
}

func TestMemoryStore_MissingAndDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	if _, err := m.Open(ctx, "nope"); !errors.Is(err, dedupe.ErrMissingBlob) {
		t.Errorf("Open() error = %v, want ErrMissingBlob", err)
	}

	m.Write(ctx, "a", strings.NewReader("x"))
	if ok, _ := m.Exists(ctx, "a"); !ok {
		t.Error("Exists() = false after Write()")
	}
	if err := m.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if ok, _ := m.Exists(ctx, "a"); ok {
		t.Error("Exists() = true after Delete()")
	}
	if err := m.Delete(ctx, "a"); err != nil {
		t.Errorf("Delete() of missing blob error = %v", err)
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Write(ctx, "shared", strings.NewReader("same"))
			if rc, err := m.Open(ctx, "shared"); err == nil {
				io.ReadAll(rc)
				rc.Close()
			}
		}()
	}
	wg.Wait()

	if m.Writes() != 20 {
		t.Errorf("Writes() = %d, want 20", m.Writes())
	}
}
