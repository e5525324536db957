package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// SnapshotStore keeps submitted snapshot images on the local filesystem,
// keyed by an opaque identifier. The key is what gets persisted with a
// violation record as its screenshot reference.
type SnapshotStore struct {
	dir string
}

func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	return &SnapshotStore{dir: dir}, nil
}

// Save writes the image under a fresh key and returns the key.
func (s *SnapshotStore) Save(image []byte) (string, error) {
	key := uuid.New().String()
	path := filepath.Join(s.dir, key+".jpg")

	if err := os.WriteFile(path, image, 0o640); err != nil {
		return "", fmt.Errorf("writing snapshot %s: %w", key, err)
	}
	return key, nil
}

// Path resolves a key back to a file path. Keys are validated so a stored
// reference can never escape the snapshot directory.
func (s *SnapshotStore) Path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, "/\\") || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid snapshot key %q", key)
	}
	return filepath.Join(s.dir, key+".jpg"), nil
}
