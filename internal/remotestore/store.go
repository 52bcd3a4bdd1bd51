// Package remotestore implements the primary document store on Redis.
// Writes are per-entity upserts keyed by id; reads come back ordered by
// updatedAt descending via a sorted set maintained next to the entities.
package remotestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smartyoni/checkdoc/internal/models"
)

const (
	docKeyPrefix = "doc:"
	tplKeyPrefix = "tpl:"
	docsByTime   = "docs_by_updated"
	tplsByTime   = "tpls_by_updated"
)

// Store wraps a Redis client with entity operations.
type Store struct {
	rdb *redis.Client
}

// New creates a Store backed by the given client.
func New(client *redis.Client) *Store {
	return &Store{rdb: client}
}

// Ping verifies the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("remotestore: ping: %w", err)
	}
	return nil
}

func docKey(id string) string { return docKeyPrefix + id }
func tplKey(id string) string { return tplKeyPrefix + id }

// list reads every entity referenced by the sorted set, newest first.
// Members whose entity key has vanished are skipped.
func (s *Store) list(ctx context.Context, zset string, key func(string) string) ([]models.Document, error) {
	ids, err := s.rdb.ZRevRange(ctx, zset, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("remotestore: range %s: %w", zset, err)
	}
	out := make([]models.Document, 0, len(ids))
	for _, id := range ids {
		data, err := s.rdb.Get(ctx, key(id)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("remotestore: get %s: %w", key(id), err)
		}
		var doc models.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("remotestore: decode %s: %w", key(id), err)
		}
		out = append(out, doc)
	}
	return out, nil
}

// save upserts one entity and stamps UpdatedAt at write time.
func (s *Store) save(ctx context.Context, zset string, key func(string) string, doc models.Document) (models.Document, error) {
	if doc.ID == "" {
		return models.Document{}, fmt.Errorf("remotestore: save: empty id")
	}
	doc.UpdatedAt = time.Now().UnixMilli()
	data, err := json.Marshal(doc)
	if err != nil {
		return models.Document{}, fmt.Errorf("remotestore: encode %s: %w", doc.ID, err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, key(doc.ID), data, 0)
	pipe.ZAdd(ctx, zset, redis.Z{Score: float64(doc.UpdatedAt), Member: doc.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return models.Document{}, fmt.Errorf("remotestore: save %s: %w", doc.ID, err)
	}
	return doc, nil
}

// delete removes one entity. Deleting an absent id is a no-op.
func (s *Store) delete(ctx context.Context, zset string, key func(string) string, id string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key(id))
	pipe.ZRem(ctx, zset, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remotestore: delete %s: %w", id, err)
	}
	return nil
}

// Documents returns all documents ordered by updatedAt descending.
func (s *Store) Documents(ctx context.Context) ([]models.Document, error) {
	return s.list(ctx, docsByTime, docKey)
}

// SaveDocument upserts one document and returns it with the write-time stamp.
func (s *Store) SaveDocument(ctx context.Context, doc models.Document) (models.Document, error) {
	return s.save(ctx, docsByTime, docKey, doc)
}

// DeleteDocument removes one document; absent ids are a no-op.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	return s.delete(ctx, docsByTime, docKey, id)
}

// Templates returns all templates ordered by updatedAt descending.
func (s *Store) Templates(ctx context.Context) ([]models.Document, error) {
	return s.list(ctx, tplsByTime, tplKey)
}

// SaveTemplate upserts one template and returns it with the write-time stamp.
func (s *Store) SaveTemplate(ctx context.Context, doc models.Document) (models.Document, error) {
	return s.save(ctx, tplsByTime, tplKey, doc)
}

// DeleteTemplate removes one template; absent ids are a no-op.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	return s.delete(ctx, tplsByTime, tplKey, id)
}

// ExportAll assembles a backup from a full read of both collections.
func (s *Store) ExportAll(ctx context.Context) (*models.Backup, error) {
	docs, err := s.Documents(ctx)
	if err != nil {
		return nil, err
	}
	templates, err := s.Templates(ctx)
	if err != nil {
		return nil, err
	}
	return models.NewBackup(docs, templates), nil
}

// ImportAll upserts every entity in the backup by id. Entities absent from
// the blob are left untouched: restoring a stale backup must not delete
// documents created after it was taken.
func (s *Store) ImportAll(ctx context.Context, b *models.Backup) error {
	for _, doc := range b.Documents {
		if _, err := s.SaveDocument(ctx, doc); err != nil {
			return err
		}
	}
	for _, tpl := range b.Templates {
		if _, err := s.SaveTemplate(ctx, tpl); err != nil {
			return err
		}
	}
	return nil
}
