// Package localstore implements the local fallback store on an embedded
// SQLite key-value table. Collection saves are full replacements of the
// stored blob: callers always pass the complete desired collection.
package localstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/smartyoni/checkdoc/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL DEFAULT ''
);
`

// Storage keys. The tm_ prefix matches records written by earlier releases,
// which the legacy-import migration reads.
const (
	keyDocuments = "tm_documents"
	keyTemplates = "tm_templates"
	keyFavorite  = "tm_favorite_doc_id"
)

// Store wraps a SQLite connection with key-value collection operations.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("localstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("localstore: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("localstore: apply schema: %w", err)
	}
	return &Store{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) get(key string) (string, bool, error) {
	var v string
	err := s.conn.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("localstore: get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *Store) set(key, value string) error {
	_, err := s.conn.Exec(`
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("localstore: set %s: %w", key, err)
	}
	return nil
}

func (s *Store) del(key string) error {
	if _, err := s.conn.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("localstore: delete %s: %w", key, err)
	}
	return nil
}

// loadCollection decodes a stored collection. A malformed blob is non-fatal:
// it reads as an empty collection and is logged.
func (s *Store) loadCollection(key string) ([]models.Document, error) {
	raw, ok, err := s.get(key)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return []models.Document{}, nil
	}
	var docs []models.Document
	if err := json.Unmarshal([]byte(raw), &docs); err != nil {
		slog.Warn("localstore: malformed collection, treating as empty",
			slog.String("key", key), slog.String("error", err.Error()))
		return []models.Document{}, nil
	}
	if docs == nil {
		docs = []models.Document{}
	}
	return docs, nil
}

func (s *Store) saveCollection(key string, docs []models.Document) error {
	if docs == nil {
		docs = []models.Document{}
	}
	data, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("localstore: encode %s: %w", key, err)
	}
	return s.set(key, string(data))
}

// Documents returns the stored document collection.
func (s *Store) Documents() ([]models.Document, error) {
	return s.loadCollection(keyDocuments)
}

// SaveDocuments replaces the stored document collection wholesale.
func (s *Store) SaveDocuments(docs []models.Document) error {
	return s.saveCollection(keyDocuments, docs)
}

// Templates returns the stored template collection.
func (s *Store) Templates() ([]models.Document, error) {
	return s.loadCollection(keyTemplates)
}

// SaveTemplates replaces the stored template collection wholesale.
func (s *Store) SaveTemplates(docs []models.Document) error {
	return s.saveCollection(keyTemplates, docs)
}

// FavoriteID returns the favorite document pointer, or "" when unset.
func (s *Store) FavoriteID() (string, error) {
	v, _, err := s.get(keyFavorite)
	return v, err
}

// SetFavoriteID stores the favorite document pointer.
func (s *Store) SetFavoriteID(id string) error {
	return s.set(keyFavorite, id)
}

// ClearFavoriteID removes the favorite document pointer.
func (s *Store) ClearFavoriteID() error {
	return s.del(keyFavorite)
}

// Flag reports whether the named installation flag has been set. Flags are
// stored as the string "true" or absent.
func (s *Store) Flag(name string) (bool, error) {
	v, ok, err := s.get(name)
	if err != nil {
		return false, err
	}
	return ok && v == "true", nil
}

// SetFlag marks the named installation flag as set.
func (s *Store) SetFlag(name string) error {
	return s.set(name, "true")
}

// ExportAll assembles a backup of both stored collections.
func (s *Store) ExportAll() (*models.Backup, error) {
	docs, err := s.Documents()
	if err != nil {
		return nil, err
	}
	templates, err := s.Templates()
	if err != nil {
		return nil, err
	}
	return models.NewBackup(docs, templates), nil
}

// ImportAll replaces both stored collections with the backup contents.
// The local store has no per-entity writes, so a restore is a full swap.
func (s *Store) ImportAll(b *models.Backup) error {
	if err := s.SaveDocuments(b.Documents); err != nil {
		return err
	}
	return s.SaveTemplates(b.Templates)
}
