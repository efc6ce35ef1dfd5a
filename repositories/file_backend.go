package repositories

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const documentExt = ".json"

// DocumentBackend stores whole project documents by id.
// Save must replace the document atomically: a concurrent or later Load observes either
// the previous or the new document, never a partial one.
type DocumentBackend interface {
	Load(ctx context.Context, id string) ([]byte, error)
	Save(ctx context.Context, id, ownerID string, doc []byte) error
	Create(ctx context.Context, id, ownerID string, doc []byte) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
}

// FileBackend keeps one JSON file per project in a directory.
type FileBackend struct {
	dir string
}

func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data dir %s: %w", ErrStorageIO, dir, err)
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) path(id string) string {
	return filepath.Join(b.dir, id+documentExt)
}

func (b *FileBackend) Load(ctx context.Context, id string) ([]byte, error) {
	data, err := os.ReadFile(b.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("%w: read project %s: %w", ErrStorageIO, id, err)
	}
	return data, nil
}

// Save writes doc to a temporary file in the same directory, syncs it and renames it over
// the current document.
func (b *FileBackend) Save(ctx context.Context, id, ownerID string, doc []byte) error {
	tmp, err := os.CreateTemp(b.dir, "."+id+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file for %s: %w", ErrStorageIO, id, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write project %s: %w", ErrStorageIO, id, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync project %s: %w", ErrStorageIO, id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close project %s: %w", ErrStorageIO, id, err)
	}
	if err := os.Rename(tmpName, b.path(id)); err != nil {
		return fmt.Errorf("%w: replace project %s: %w", ErrStorageIO, id, err)
	}
	committed = true

	// Переименование должно пережить сбой питания.
	if d, err := os.Open(b.dir); err == nil {
		d.Sync()
		d.Close()
	}
	return nil
}

func (b *FileBackend) Create(ctx context.Context, id, ownerID string, doc []byte) error {
	if _, err := os.Stat(b.path(id)); err == nil {
		return ErrProjectExists
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: stat project %s: %w", ErrStorageIO, id, err)
	}
	return b.Save(ctx, id, ownerID, doc)
}

func (b *FileBackend) Delete(ctx context.Context, id string) error {
	if err := os.Remove(b.path(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("%w: delete project %s: %w", ErrStorageIO, id, err)
	}
	return nil
}

func (b *FileBackend) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", ErrStorageIO, b.dir, err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, documentExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, documentExt))
	}
	sort.Strings(ids)
	return ids, nil
}
