// internal/ledger/store.go
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore writes portfolio snapshots to a single JSON file. Each save
// rewrites the whole file; there is no write-ahead log, so the in-memory
// ledger remains the source of truth while the process is alive.
type FileStore struct {
	path string
}

// NewFileStore creates the snapshot directory if needed.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Save serializes the snapshot and overwrites the file.
func (fs *FileStore) Save(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(fs.path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Load reads the last saved snapshot. A missing file is not an error; it
// returns (nil, nil) so a fresh ledger starts empty.
func (fs *FileStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
