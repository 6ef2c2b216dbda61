package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore persists cache entries as a JSON file. The write is
// atomic (temp file + rename) so a crash mid-save never leaves a
// half-written cache behind.
type FileStore struct {
	Path string
}

// NewFileStore creates a JSON file store at the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load implements Store. A missing file is an empty cache; an
// undecodable file is reported as ErrCorrupt.
func (fs *FileStore) Load() ([]Entry, error) {
	data, err := os.ReadFile(fs.Path) //#nosec G304 -- user-provided cache path
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read healing cache: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, fs.Path, err)
	}
	return entries, nil
}

// Save implements Store.
func (fs *FileStore) Save(entries []Entry) error {
	if dir := filepath.Dir(fs.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode healing cache: %w", err)
	}

	tmp := fs.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write healing cache: %w", err)
	}
	if err := os.Rename(tmp, fs.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace healing cache: %w", err)
	}
	return nil
}
