package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStoreSave(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root)
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	ref, err := store.Save(context.Background(), "cover.jpg", strings.NewReader("jpeg bytes"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if ref != "shared_images/cover.jpg" {
		t.Fatalf("unexpected reference %q", ref)
	}

	data, err := os.ReadFile(store.Path(ref))
	if err != nil {
		t.Fatalf("read saved image: %v", err)
	}
	if string(data) != "jpeg bytes" {
		t.Fatalf("unexpected contents %q", data)
	}

	leftovers, _ := filepath.Glob(filepath.Join(root, imagesDir, ".upload-*"))
	if len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v", leftovers)
	}
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	for _, name := range []string{"", "../escape.png", "nested/dir.png", ".."} {
		if _, err := store.Save(context.Background(), name, strings.NewReader("x")); !errors.Is(err, ErrInvalidName) {
			t.Fatalf("Save(%q) expected ErrInvalidName got %v", name, err)
		}
	}
}

func TestLocalStoreCancelledContext(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Save(ctx, "a.png", strings.NewReader("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled got %v", err)
	}
}

func TestContentType(t *testing.T) {
	if got := contentType("snapshot_1.PNG"); got != "image/png" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := contentType("blob"); got != "application/octet-stream" {
		t.Fatalf("unexpected content type %q", got)
	}
}
