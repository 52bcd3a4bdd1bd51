// Package migrate runs one-time data-shape upgrades at startup. Each
// procedure is gated by a persisted flag and safe to re-run until the flag
// is set; a failed run retries on the next launch.
package migrate

import (
	"context"
	"log/slog"

	"github.com/smartyoni/checkdoc/internal/models"
	"github.com/smartyoni/checkdoc/internal/storage"
)

// Flag keys. The tm_ prefix matches flags written by earlier releases.
const (
	FlagLegacyImport     = "tm_migration_completed"
	FlagTemplateCategory = "tm_template_category_migration_completed"
)

// FlagStore persists installation-scoped completion flags.
type FlagStore interface {
	Flag(name string) (bool, error)
	SetFlag(name string) error
}

// Source is the legacy local-only collection being imported.
type Source interface {
	Documents() ([]models.Document, error)
	Templates() ([]models.Document, error)
}

// Target accepts per-entity writes into the remote store. Writes are
// idempotent by id, so a partially failed procedure is safe to re-run.
type Target interface {
	SaveDocument(ctx context.Context, doc models.Document) (models.Document, error)
	SaveTemplate(ctx context.Context, doc models.Document) (models.Document, error)
	DeleteTemplate(ctx context.Context, id string) error
}

// Engine runs the migration procedures in order.
type Engine struct {
	flags  FlagStore
	src    Source
	dst    Target
	store  storage.Store
	logger *slog.Logger
}

// NewEngine creates a migration engine. Both procedures write straight to
// dst rather than through the facade: they need per-entity failure
// visibility that the facade's fallback policy hides, so that a flag is
// only ever set once the backend truly holds the result. The facade serves
// reads, where falling back to local is the desired behavior.
func NewEngine(flags FlagStore, src Source, dst Target, store storage.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{flags: flags, src: src, dst: dst, store: store, logger: logger}
}

// Run executes both procedures in order. Failures are logged and do not
// block startup: the flag stays unset so the procedure retries next launch.
func (e *Engine) Run(ctx context.Context) {
	if err := e.legacyImport(ctx); err != nil {
		e.logger.Warn("migrate: legacy import failed", slog.String("error", err.Error()))
	}
	if err := e.categoryBackfill(ctx); err != nil {
		e.logger.Warn("migrate: category backfill failed", slog.String("error", err.Error()))
	}
}

// legacyImport copies every document and template from the legacy local
// collection into the remote store via per-entity upserts.
func (e *Engine) legacyImport(ctx context.Context) error {
	done, err := e.flags.Flag(FlagLegacyImport)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	docs, err := e.src.Documents()
	if err != nil {
		return err
	}
	templates, err := e.src.Templates()
	if err != nil {
		return err
	}

	e.logger.Info("migrate: importing legacy collections",
		slog.Int("documents", len(docs)), slog.Int("templates", len(templates)))

	for _, doc := range docs {
		if _, err := e.dst.SaveDocument(ctx, doc); err != nil {
			return err
		}
	}
	for _, tpl := range templates {
		if _, err := e.dst.SaveTemplate(ctx, tpl); err != nil {
			return err
		}
	}

	return e.flags.SetFlag(FlagLegacyImport)
}

// categoryBackfill defaults missing template categories to task, then for
// any category holding more than one template keeps only the one with the
// greatest updatedAt and deletes the rest from the backend. Runs strictly
// after legacyImport.
func (e *Engine) categoryBackfill(ctx context.Context) error {
	done, err := e.flags.Flag(FlagTemplateCategory)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	templates, err := e.store.Templates(ctx)
	if err != nil {
		return err
	}

	byCategory := make(map[models.Category][]models.Document)
	for _, tpl := range templates {
		if tpl.TemplateCategory == "" {
			tpl.TemplateCategory = models.CategoryTask
		}
		byCategory[tpl.TemplateCategory] = append(byCategory[tpl.TemplateCategory], tpl)
	}

	kept := make([]models.Document, 0, len(byCategory))
	for _, group := range byCategory {
		winner := group[0]
		for _, tpl := range group[1:] {
			if tpl.UpdatedAt > winner.UpdatedAt {
				winner = tpl
			}
		}
		for _, tpl := range group {
			if tpl.ID == winner.ID {
				continue
			}
			e.logger.Info("migrate: removing duplicate template",
				slog.String("id", tpl.ID),
				slog.String("category", string(tpl.TemplateCategory)))
			if err := e.dst.DeleteTemplate(ctx, tpl.ID); err != nil {
				return err
			}
		}
		kept = append(kept, winner)
	}

	// Persist the backfilled categories per entity so any failure surfaces
	// here and keeps the flag unset for a retry.
	for _, tpl := range kept {
		if _, err := e.dst.SaveTemplate(ctx, tpl); err != nil {
			return err
		}
	}

	// The backend holds the result; refresh the local mirror through the
	// facade so fallback reads agree with it.
	if err := e.store.SaveTemplates(ctx, kept); err != nil {
		return err
	}
	return e.flags.SetFlag(FlagTemplateCategory)
}
