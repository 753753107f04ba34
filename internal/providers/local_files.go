package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/osvaldoandrade/flowdb/pkg/persistence"

	"github.com/google/uuid"
)

type localFiles struct {
	rootDir string
}

// NewLocalFileStorage keeps artifacts as plain files under rootDir. The id of
// a blob is its file name: a uuid followed by the original base name.
func NewLocalFileStorage(rootDir string) persistence.FileStorage {
	return &localFiles{rootDir: rootDir}
}

func (u *localFiles) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(u.rootDir, 0o755); err != nil {
		return "", err
	}
	id := uuid.NewString() + "-" + filepath.Base(name)
	f, err := os.Create(filepath.Join(u.rootDir, id))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		return "", err
	}
	return id, nil
}

func (u *localFiles) Get(ctx context.Context, id string) ([]byte, error) {
	path, err := u.path(id)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("blob %s: %w", id, persistence.ErrNotFound)
	}
	return b, err
}

func (u *localFiles) Delete(ctx context.Context, id string) error {
	path, err := u.path(id)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("blob %s: %w", id, persistence.ErrNotFound)
	}
	return err
}

// path rejects ids that would escape rootDir.
func (u *localFiles) path(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("blob %q: %w", id, persistence.ErrNotFound)
	}
	return filepath.Join(u.rootDir, id), nil
}
