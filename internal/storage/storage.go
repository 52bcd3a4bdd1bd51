// Package storage unifies the remote and local persistence adapters behind
// one interface with a remote-first, local-fallback policy.
package storage

import (
	"context"

	"github.com/smartyoni/checkdoc/internal/models"
)

// Store is the persistence interface the rest of the application depends on.
// Consumers should use this interface rather than the concrete *Facade type
// to facilitate testing with stubs.
type Store interface {
	Documents(ctx context.Context) ([]models.Document, error)
	SaveDocuments(ctx context.Context, docs []models.Document) error
	Templates(ctx context.Context) ([]models.Document, error)
	SaveTemplates(ctx context.Context, docs []models.Document) error

	// Deletes are remote-only: under the local full-replacement model an
	// entity disappears from local on the next collection save that omits it.
	DeleteDocument(ctx context.Context, id string) error
	DeleteTemplate(ctx context.Context, id string) error

	FavoriteID(ctx context.Context) (string, error)
	SetFavoriteID(ctx context.Context, id string) error
	ClearFavoriteID(ctx context.Context) error

	ExportAll(ctx context.Context) (*models.Backup, error)
	ImportAll(ctx context.Context, b *models.Backup) error
}
