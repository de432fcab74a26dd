package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStorage keeps uploaded originals in a working directory on disk.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates the upload directory if it does not exist.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Save writes the upload under a uuid-prefixed name and returns its path.
func (l *LocalStorage) Save(_ context.Context, filename string, data []byte, _ string) (string, error) {
	path := filepath.Join(l.basePath, ObjectName(filename))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing upload: %w", err)
	}
	return path, nil
}
