package rules

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileBackend stores the rule set as a JSON file. Writes go to a temp file in
// the same directory and are renamed over the target, so readers never see a
// partial document.
type FileBackend struct {
	path string
}

func NewFileBackend(root, name string) (*FileBackend, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		root = "./data"
	}
	name = filepath.Base(filepath.Clean("/" + strings.TrimSpace(name)))
	if name == "" || name == "." || name == "/" {
		return nil, errors.New("invalid rule set name")
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create rules directory: %w", err)
	}
	return &FileBackend{path: filepath.Join(root, name)}, nil
}

func (b *FileBackend) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (b *FileBackend) Write(_ context.Context, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o640); err != nil {
		return err
	}
	return os.Rename(tmpPath, b.path)
}
