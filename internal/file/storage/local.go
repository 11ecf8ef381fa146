package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"enterprise-api/backend/internal/file/domain"
)

// Local stores objects as files under a root directory.
type Local struct {
	root string
}

// NewLocal returns a Local store rooted at dir, creating it if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create upload dir: %w", err)
	}
	return &Local{root: dir}, nil
}

func (l *Local) Type() string { return domain.StorageLocal }

func (l *Local) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	path, err := l.resolve(key)
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (l *Local) Delete(_ context.Context, path string) error {
	if !l.contains(path) {
		return fmt.Errorf("storage: %q is outside the upload dir", path)
	}
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// resolve joins key to the root, rejecting keys that escape it.
func (l *Local) resolve(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return filepath.Join(l.root, key), nil
}

func (l *Local) contains(path string) bool {
	rel, err := filepath.Rel(l.root, path)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}
