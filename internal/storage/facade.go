package storage

import (
	"context"
	"log/slog"

	"github.com/smartyoni/checkdoc/internal/localstore"
	"github.com/smartyoni/checkdoc/internal/models"
	"github.com/smartyoni/checkdoc/internal/remotestore"
)

// Facade implements Store with a remote-first policy: every write goes to
// the remote store and is mirrored to local best-effort for offline reads.
// When the remote store is unreachable the local store serves alone and the
// degradation is logged, never surfaced as a blocking error.
type Facade struct {
	remote *remotestore.Store
	local  *localstore.Store
	logger *slog.Logger
}

// Verify *Facade satisfies Store at compile time.
var _ Store = (*Facade)(nil)

// NewFacade creates a facade over the given adapters.
func NewFacade(remote *remotestore.Store, local *localstore.Store, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{remote: remote, local: local, logger: logger}
}

func (f *Facade) degraded(op string, err error) {
	f.logger.Warn("storage: remote unavailable, using local fallback",
		slog.String("op", op), slog.String("error", err.Error()))
}

func (f *Facade) mirrorFailed(op string, err error) {
	f.logger.Warn("storage: local mirror failed",
		slog.String("op", op), slog.String("error", err.Error()))
}

// Documents reads from remote, falling back to local on failure.
func (f *Facade) Documents(ctx context.Context) ([]models.Document, error) {
	docs, err := f.remote.Documents(ctx)
	if err != nil {
		f.degraded("documents", err)
		return f.local.Documents()
	}
	return docs, nil
}

// SaveDocuments upserts every document to remote, then mirrors the full
// collection to local. On remote failure the write is accepted locally.
func (f *Facade) SaveDocuments(ctx context.Context, docs []models.Document) error {
	for _, doc := range docs {
		if _, err := f.remote.SaveDocument(ctx, doc); err != nil {
			f.degraded("save-documents", err)
			return f.local.SaveDocuments(docs)
		}
	}
	if err := f.local.SaveDocuments(docs); err != nil {
		f.mirrorFailed("save-documents", err)
	}
	return nil
}

// Templates reads from remote, falling back to local on failure.
func (f *Facade) Templates(ctx context.Context) ([]models.Document, error) {
	templates, err := f.remote.Templates(ctx)
	if err != nil {
		f.degraded("templates", err)
		return f.local.Templates()
	}
	return templates, nil
}

// SaveTemplates upserts every template to remote, then mirrors to local.
func (f *Facade) SaveTemplates(ctx context.Context, docs []models.Document) error {
	for _, tpl := range docs {
		if _, err := f.remote.SaveTemplate(ctx, tpl); err != nil {
			f.degraded("save-templates", err)
			return f.local.SaveTemplates(docs)
		}
	}
	if err := f.local.SaveTemplates(docs); err != nil {
		f.mirrorFailed("save-templates", err)
	}
	return nil
}

// DeleteDocument removes one document from the remote store.
func (f *Facade) DeleteDocument(ctx context.Context, id string) error {
	if err := f.remote.DeleteDocument(ctx, id); err != nil {
		f.degraded("delete-document", err)
	}
	return nil
}

// DeleteTemplate removes one template from the remote store.
func (f *Facade) DeleteTemplate(ctx context.Context, id string) error {
	if err := f.remote.DeleteTemplate(ctx, id); err != nil {
		f.degraded("delete-template", err)
	}
	return nil
}

// FavoriteID reads the favorite pointer. The pointer lives in the local
// store only, separate from the collections.
func (f *Facade) FavoriteID(_ context.Context) (string, error) {
	return f.local.FavoriteID()
}

// SetFavoriteID stores the favorite pointer.
func (f *Facade) SetFavoriteID(_ context.Context, id string) error {
	return f.local.SetFavoriteID(id)
}

// ClearFavoriteID removes the favorite pointer.
func (f *Facade) ClearFavoriteID(_ context.Context) error {
	return f.local.ClearFavoriteID()
}

// ExportAll exports from remote, falling back to local on failure.
func (f *Facade) ExportAll(ctx context.Context) (*models.Backup, error) {
	b, err := f.remote.ExportAll(ctx)
	if err != nil {
		f.degraded("export", err)
		return f.local.ExportAll()
	}
	return b, nil
}

// ImportAll applies the backup to remote (upsert-only) and mirrors the
// restored collections to local. Remote failure fails the restore: this is
// the one flow where the user asked for durable recovery and must hear
// about a failure.
func (f *Facade) ImportAll(ctx context.Context, b *models.Backup) error {
	if err := f.remote.ImportAll(ctx, b); err != nil {
		return err
	}
	// Mirror post-import backend truth, not the blob: the upsert-only import
	// may have kept entities the blob never knew about.
	docs, err := f.remote.Documents(ctx)
	if err == nil {
		err = f.local.SaveDocuments(docs)
	}
	if err == nil {
		var templates []models.Document
		if templates, err = f.remote.Templates(ctx); err == nil {
			err = f.local.SaveTemplates(templates)
		}
	}
	if err != nil {
		f.mirrorFailed("import", err)
	}
	return nil
}
