package blob

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

// FileStore keeps one file per key under a directory. Writes go through a temp file and
// a rename so a crash never leaves a torn value.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, eris.New("blob: file store needs a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "blob: create %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+".json")
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "blob: read %s", key)
	}
	return b, true, nil
}

func (s *FileStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return eris.Wrap(err, "blob: create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return eris.Wrapf(err, "blob: write %s", key)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "blob: close %s", key)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return eris.Wrapf(err, "blob: commit %s", key)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
