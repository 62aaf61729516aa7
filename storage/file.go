package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/attestly/trustedsign/interfaces"
)

// FileBackend implements blob storage on the local file system. Blobs are
// plain files directly under the base directory; nested names are rejected.
type FileBackend struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileBackend creates a file storage backend rooted at baseDir, creating
// the directory if needed.
func NewFileBackend(baseDir string, log *slog.Logger) (*FileBackend, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create base directory: %w", err)
	}

	return &FileBackend{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// List returns the names of all blobs in the backend. Subdirectories are
// skipped.
func (b *FileBackend) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(b.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: could not list %s: %v", interfaces.ErrBackendUnavailable, b.baseDir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// Fetch reads a blob by name. Returns ErrBlobNotFound if it does not exist.
func (b *FileBackend) Fetch(ctx context.Context, name string) ([]byte, error) {
	path, err := b.blobPath(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", interfaces.ErrBlobNotFound, name)
		}
		return nil, fmt.Errorf("could not read blob: %w", err)
	}

	b.log.Debug("Fetched blob from file",
		slog.String("path", path),
		slog.Int("size", len(data)))

	return data, nil
}

// Store writes a blob under the given name, replacing any existing content.
func (b *FileBackend) Store(ctx context.Context, name string, data []byte) error {
	path, err := b.blobPath(name)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("could not write blob: %w", err)
	}

	b.log.Debug("Stored blob in file",
		slog.String("path", path),
		slog.Int("size", len(data)))

	return nil
}

// Delete removes a blob by name. Deleting a missing blob is not an error.
func (b *FileBackend) Delete(ctx context.Context, name string) error {
	path, err := b.blobPath(name)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("could not delete blob: %w", err)
	}
	return nil
}

// LocationURI returns the URI that identifies this storage backend.
func (b *FileBackend) LocationURI() string {
	return b.locationURI
}

// blobPath resolves a blob name inside the base directory, rejecting names
// that would escape it.
func (b *FileBackend) blobPath(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid blob name: %q", name)
	}
	return filepath.Join(b.baseDir, name), nil
}
