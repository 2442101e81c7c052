// Package storage provides the JSON-file persistence backend used by
// the client: the whole identity collection is written out on every
// save and read back on startup.
package storage

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nexuskeeper/nexus/internal/models"
)

// DefaultPath is the storage file used when none is configured.
const DefaultPath = "identities.json"

// fileFormat is the on-disk shape of the storage file.
type fileFormat struct {
	Identities []models.Identity `json:"identities"`
}

// FileStore persists the identity collection to a single JSON file.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore writing to path, or DefaultPath if
// path is empty.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath
	}
	return &FileStore{path: path}
}

// Load reads the saved collection. A missing file yields an empty
// collection, not an error.
func (fs *FileStore) Load() ([]models.Identity, error) {
	f, err := os.Open(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []models.Identity{}, nil
		}
		return nil, fmt.Errorf("open storage file: %w", err)
	}
	defer f.Close()

	var data fileFormat
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode storage file: %w", err)
	}
	if data.Identities == nil {
		data.Identities = []models.Identity{}
	}
	return data.Identities, nil
}

// Save replaces the storage file with the given collection.
func (fs *FileStore) Save(ids []models.Identity) error {
	f, err := os.Create(fs.path)
	if err != nil {
		return fmt.Errorf("create storage file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(fileFormat{Identities: ids}); err != nil {
		return fmt.Errorf("encode storage file: %w", err)
	}
	return nil
}
