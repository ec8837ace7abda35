package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"trade-watch/internal/session"
)

// Compile-time check to ensure FileStore implements SessionStore
var _ SessionStore = (*FileStore)(nil)

// FileStore keeps the session blob in a single JSON file. It is the
// default backend, the local-storage analogue for a terminal client.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Restore(ctx context.Context) (*session.State, bool, error) {
	b, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading session file %s: %w", f.path, err)
	}
	st := session.NewState()
	if err := json.Unmarshal(b, st); err != nil {
		return nil, false, fmt.Errorf("decoding session file %s: %w", f.path, err)
	}
	return st, true, nil
}

func (f *FileStore) Save(ctx context.Context, st *session.State) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := os.WriteFile(f.path, b, 0o600); err != nil {
		return fmt.Errorf("writing session file %s: %w", f.path, err)
	}
	return nil
}

func (f *FileStore) Close() error { return nil }
