package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
)

// SnapshotStore persists live sessions so a restarted process can resume them
type SnapshotStore interface {
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID int64) error
	LoadAll(ctx context.Context) ([]*Session, error)
}

// FileSnapshotStore keeps all snapshots in one JSON file
type FileSnapshotStore struct {
	path string

	mu       sync.Mutex
	loaded   bool
	sessions map[string]json.RawMessage
}

// NewFileSnapshotStore creates a store backed by path. The file is created on first save.
func NewFileSnapshotStore(path string) *FileSnapshotStore {
	return &FileSnapshotStore{path: path}
}

// Save implements SnapshotStore
func (fs *FileSnapshotStore) Save(_ context.Context, s *Session) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.load(); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	fs.sessions[strconv.FormatInt(s.UserID, 10)] = data
	return fs.flush()
}

// Delete implements SnapshotStore
func (fs *FileSnapshotStore) Delete(_ context.Context, userID int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.load(); err != nil {
		return err
	}
	key := strconv.FormatInt(userID, 10)
	if _, ok := fs.sessions[key]; !ok {
		return nil
	}
	delete(fs.sessions, key)
	return fs.flush()
}

// LoadAll implements SnapshotStore
func (fs *FileSnapshotStore) LoadAll(_ context.Context) ([]*Session, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.load(); err != nil {
		return nil, err
	}
	out := make([]*Session, 0, len(fs.sessions))
	for key, raw := range fs.sessions {
		var s Session
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
		}
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (fs *FileSnapshotStore) load() error {
	if fs.loaded {
		return nil
	}
	fs.sessions = make(map[string]json.RawMessage)
	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		fs.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read snapshot file: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &fs.sessions); err != nil {
			return fmt.Errorf("failed to decode snapshot file: %w", err)
		}
	}
	fs.loaded = true
	return nil
}

// flush writes the snapshots to a temp file and renames it over the old one
func (fs *FileSnapshotStore) flush() error {
	data, err := json.Marshal(fs.sessions)
	if err != nil {
		return fmt.Errorf("failed to encode snapshots: %w", err)
	}
	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fs.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}
	return nil
}
