package keystore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/and161185/notekeeper/internal/errs"
)

// FileBackend keeps the raw key bytes in a file.
type FileBackend struct {
	Path string
}

func (b *FileBackend) String() string { return "file:" + b.Path }

// Load reads the key file.
func (b *FileBackend) Load(_ context.Context) ([]byte, error) {
	key, err := os.ReadFile(b.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.ErrNotFound
	}
	return key, err
}

// CreateExclusive writes key to a temp file next to Path and hard-links it into
// place. The link fails if Path exists, so a key file is never overwritten and
// never observed half-written.
func (b *FileBackend) CreateExclusive(_ context.Context, key []byte) error {
	dir := filepath.Dir(b.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".key-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	if err := tmp.Chmod(0o600); err != nil {
		return err
	}
	if _, err := tmp.Write(key); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Link(tmp.Name(), b.Path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return errs.ErrAlreadyExists
		}
		return fmt.Errorf("link key file: %w", err)
	}
	return nil
}
