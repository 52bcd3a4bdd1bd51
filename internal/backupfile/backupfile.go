// Package backupfile reads and writes backup JSON files on disk.
package backupfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/smartyoni/checkdoc/internal/models"
)

// Write marshals the backup and writes it atomically: the data goes to a
// temp file in the same directory, is fsynced, then renamed over path.
func Write(path string, b *models.Backup) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("backupfile: marshal: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("backupfile: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".backup-*.json.tmp")
	if err != nil {
		return fmt.Errorf("backupfile: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("backupfile: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("backupfile: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("backupfile: close temp: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("backupfile: rename: %w", err)
	}
	return nil
}

// Read returns the raw contents of a backup file.
func Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("backupfile: read: %w", err)
	}
	return data, nil
}
