// Package storage keeps uploaded photos on the local filesystem.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/samirrijal/civicconnect/internal/core/domain"
)

// Local implements ports.PhotoStore in a single directory. Stored names are
// random UUIDs keeping the original extension.
type Local struct {
	dir string
}

// NewLocal creates dir if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir}, nil
}

// Save writes r under a fresh name and returns that name.
func (l *Local) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	name := uuid.NewString() + strings.ToLower(filepath.Ext(filepath.Base(originalName)))

	tmp, err := os.CreateTemp(l.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after rename

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close upload: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(l.dir, name)); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return name, nil
}

// Path resolves a stored name. Anything but a plain file name is rejected.
func (l *Local) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", domain.ErrNotFound
	}
	p := filepath.Join(l.dir, name)
	if _, err := os.Stat(p); err != nil {
		return "", domain.ErrNotFound
	}
	return p, nil
}

// Ping checks that the upload directory still accepts writes.
func (l *Local) Ping(ctx context.Context) error {
	f, err := os.CreateTemp(l.dir, ".ping-*")
	if err != nil {
		return fmt.Errorf("upload dir not writable: %w", err)
	}
	f.Close()
	return os.Remove(f.Name())
}
