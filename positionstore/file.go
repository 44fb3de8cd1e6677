package positionstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/vczyh/mysql-cdc/position"
)

// FileStore keeps the position in a TOML file. Saves replace the file
// atomically.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) (position.Position, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var r record
	if _, err := toml.DecodeFile(s.path, &r); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return position.Position{}, false, nil
		}
		return position.Position{}, false, errors.Wrapf(err, "decode %s", s.path)
	}
	p, err := r.position()
	if err != nil {
		return position.Position{}, false, err
	}
	return p, true, nil
}

func (s *FileStore) Save(_ context.Context, p position.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	err = toml.NewEncoder(f).Encode(newRecord(p))
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp, s.path)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "write %s", s.path)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
