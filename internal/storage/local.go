// Package storage persists images attached to shares and captured snapshots.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const imagesDir = "shared_images"

// ErrInvalidName is returned for empty names or names that escape the images directory.
var ErrInvalidName = errors.New("invalid image name")

// ImageStore saves image bytes and returns a reference usable as SavedAsset.ImageRef.
type ImageStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// LocalStore writes images below <root>/shared_images.
type LocalStore struct {
	root string
}

var _ ImageStore = (*LocalStore)(nil)

// NewLocalStore creates the images directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("local store: root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, imagesDir), 0o755); err != nil {
		return nil, fmt.Errorf("create images directory: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Save writes r atomically and returns the path relative to the root.
func (s *LocalStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, imagesDir)
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write image %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close image %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return "", fmt.Errorf("store image %s: %w", name, err)
	}

	return filepath.ToSlash(filepath.Join(imagesDir, name)), nil
}

// Path resolves a reference returned by Save to a file on disk.
func (s *LocalStore) Path(ref string) string {
	return filepath.Join(s.root, filepath.FromSlash(ref))
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
