package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// SnapshotStore persists one feed snapshot as a JSON file.
//
// Files:
//   - <path>      (last committed snapshot)
//   - <path>.tmp  (written first, then renamed over <path>)
type SnapshotStore[T any] struct {
	path string
}

func NewSnapshotStore[T any](path string) *SnapshotStore[T] {
	return &SnapshotStore[T]{path: strings.TrimSpace(path)}
}

func (s *SnapshotStore[T]) Path() string { return s.path }

// Load reads the cached snapshot. A missing file is not an error: ok is false.
func (s *SnapshotStore[T]) Load() (v T, ok bool, err error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return v, false, nil
	}
	if err != nil {
		return v, false, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, false, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	return v, true, nil
}

// Save replaces the cached snapshot with v.
func (s *SnapshotStore[T]) Save(v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", s.path, err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit snapshot %s: %w", s.path, err)
	}
	return nil
}
