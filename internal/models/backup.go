package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/smartyoni/checkdoc/internal/apperr"
)

// BackupVersion is the flat version tag written into every export.
const BackupVersion = "1.0"

// Backup is the export/import blob exchanged with backup files.
type Backup struct {
	Version    string     `json:"version"`
	ExportDate string     `json:"exportDate"`
	Documents  []Document `json:"documents"`
	Templates  []Document `json:"templates"`
}

// NewBackup assembles a backup of the given collections stamped with the
// current export date.
func NewBackup(docs, templates []Document) *Backup {
	if docs == nil {
		docs = []Document{}
	}
	if templates == nil {
		templates = []Document{}
	}
	return &Backup{
		Version:    BackupVersion,
		ExportDate: time.Now().UTC().Format(time.RFC3339),
		Documents:  docs,
		Templates:  templates,
	}
}

// backupShape mirrors Backup with raw collections so the sequence shape can
// be checked before decoding entities.
type backupShape struct {
	Version    string          `json:"version"`
	ExportDate string          `json:"exportDate"`
	Documents  json.RawMessage `json:"documents"`
	Templates  json.RawMessage `json:"templates"`
}

// ParseBackup decodes and validates a backup blob. A missing version tag or a
// collection that is not a JSON array fails with apperr.ErrInvalidBackup;
// nothing is partially decoded in that case.
func ParseBackup(data []byte) (*Backup, error) {
	var shape backupShape
	if err := json.Unmarshal(data, &shape); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidBackup, err)
	}
	if shape.Version == "" {
		return nil, fmt.Errorf("%w: missing version", apperr.ErrInvalidBackup)
	}
	if !isJSONArray(shape.Documents) {
		return nil, fmt.Errorf("%w: documents is not a list", apperr.ErrInvalidBackup)
	}
	if !isJSONArray(shape.Templates) {
		return nil, fmt.Errorf("%w: templates is not a list", apperr.ErrInvalidBackup)
	}

	b := &Backup{Version: shape.Version, ExportDate: shape.ExportDate}
	if err := json.Unmarshal(shape.Documents, &b.Documents); err != nil {
		return nil, fmt.Errorf("%w: documents: %v", apperr.ErrInvalidBackup, err)
	}
	if err := json.Unmarshal(shape.Templates, &b.Templates); err != nil {
		return nil, fmt.Errorf("%w: templates: %v", apperr.ErrInvalidBackup, err)
	}
	return b, nil
}

func isJSONArray(raw json.RawMessage) bool {
	for _, c := range raw {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return c == '['
	}
	return false
}
