// Package docservice owns the in-memory document/template state and the
// business rules around it: template instantiation, category-exclusive
// template replacement, favorite tracking, and write-through persistence.
package docservice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/smartyoni/checkdoc/internal/apperr"
	"github.com/smartyoni/checkdoc/internal/ident"
	"github.com/smartyoni/checkdoc/internal/models"
	"github.com/smartyoni/checkdoc/internal/storage"
)

// Mode is the active editing target's mode.
type Mode string

const (
	// ModeEditor is the initial mode and the mode entered after any save
	// or cancel.
	ModeEditor Mode = "EDITOR"
	// ModeTemplatePreview is entered only via PreviewTemplate. Saving from
	// it always creates a new document, never touches the template.
	ModeTemplatePreview Mode = "TEMPLATE_PREVIEW"
)

// Default titles applied when an entity is saved with an empty title.
const (
	defaultTitle         = "Untitled"
	defaultTemplateTitle = "Untitled Template"
	copySuffix           = " (copy)"
)

// Delete target types for the two-step delete flow.
const (
	TargetDocument = "document"
	TargetTemplate = "template"
)

// DeleteTarget records a pending delete request.
type DeleteTarget struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// EventCallback is called after a successful state mutation.
// event is e.g. "document.updated"; id is the affected entity id ("" for
// whole-state events such as "state.restored").
type EventCallback func(event, id string)

// State is a point-in-time snapshot of the controller state exposed to the
// presentation layer.
type State struct {
	Documents  []models.Document `json:"documents"`
	Templates  []models.Document `json:"templates"`
	FavoriteID string            `json:"favoriteId"`
	Active     models.Document   `json:"active"`
	Mode       Mode              `json:"mode"`
}

// Service coordinates the in-memory collections against the storage facade.
// A single mutex serializes operations; backend write races between rapid
// saves resolve last-write-wins by arrival order.
type Service struct {
	store    storage.Store
	logger   *slog.Logger
	notify   EventCallback
	debounce time.Duration

	mu               sync.Mutex
	documents        []models.Document
	templates        []models.Document
	favoriteID       string
	active           models.Document
	mode             Mode
	sourceTemplateID string
	pendingDelete    *DeleteTarget

	saveTimer   *time.Timer
	pendingEdit *models.Document
}

// NewService creates a Service. notify may be nil.
func NewService(store storage.Store, logger *slog.Logger, notify EventCallback) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		logger:   logger,
		notify:   notify,
		debounce: time.Second,
		active:   models.NewBlank(models.CategoryTask),
		mode:     ModeEditor,
	}
}

func (s *Service) emit(event, id string) {
	if s.notify != nil {
		s.notify(event, id)
	}
}

// Load populates the collections and favorite pointer from the backend and
// auto-loads the favorited document as the active editing target.
func (s *Service) Load(ctx context.Context) error {
	docs, err := s.store.Documents(ctx)
	if err != nil {
		return err
	}
	templates, err := s.store.Templates(ctx)
	if err != nil {
		return err
	}
	fav, err := s.store.FavoriteID(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = docs
	s.templates = templates
	s.favoriteID = fav
	if fav != "" {
		if doc, ok := findByID(s.documents, fav); ok {
			s.active = doc
		}
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Service) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Documents:  append([]models.Document(nil), s.documents...),
		Templates:  append([]models.Document(nil), s.templates...),
		FavoriteID: s.favoriteID,
		Active:     s.active,
		Mode:       s.mode,
	}
}

// Documents returns a copy of the live document collection.
func (s *Service) Documents() []models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Document(nil), s.documents...)
}

// Templates returns a copy of the template collection.
func (s *Service) Templates() []models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Document(nil), s.templates...)
}

// Document returns one live document by id.
func (s *Service) Document(id string) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := findByID(s.documents, id); ok {
		return doc, nil
	}
	return models.Document{}, apperr.ErrNotFound
}

// CreateDocument creates a new document of the given kind, seeded from the
// kind's template when one exists, and persists it immediately. The new
// document becomes the active editing target.
func (s *Service) CreateDocument(ctx context.Context, kind models.Category) (models.Document, error) {
	if !kind.Valid() {
		return models.Document{}, fmt.Errorf("docservice: unknown kind %q", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmAutosave()

	var doc models.Document
	if tpl, ok := findByCategory(s.templates, kind); ok {
		doc = models.Materialize(tpl, kind)
	} else {
		doc = models.NewBlank(kind)
	}

	s.documents = append(s.documents, doc)
	if err := s.store.SaveDocuments(ctx, s.documents); err != nil {
		return models.Document{}, err
	}
	s.active = doc
	s.mode = ModeEditor
	s.sourceTemplateID = ""
	s.emit("document.created", doc.ID)
	return doc, nil
}

// PreviewTemplate materializes a non-persisted instance from the template
// and enters TEMPLATE_PREVIEW mode. Saving from this mode creates a new
// document; cancelling discards the instance.
func (s *Service) PreviewTemplate(id string) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tpl, ok := findByID(s.templates, id)
	if !ok {
		return models.Document{}, apperr.ErrNotFound
	}
	s.disarmAutosave()

	preview := models.Materialize(tpl, kindForCategory(tpl.TemplateCategory))
	s.active = preview
	s.mode = ModeTemplatePreview
	s.sourceTemplateID = tpl.ID
	return preview, nil
}

// EditTemplateOriginal opens the template entity itself for direct editing.
func (s *Service) EditTemplateOriginal(id string) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tpl, ok := findByID(s.templates, id)
	if !ok {
		return models.Document{}, apperr.ErrNotFound
	}
	s.disarmAutosave()
	s.active = tpl
	s.mode = ModeEditor
	s.sourceTemplateID = ""
	return tpl, nil
}

// SelectDocument makes an existing document the active editing target.
func (s *Service) SelectDocument(id string) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := findByID(s.documents, id)
	if !ok {
		return models.Document{}, apperr.ErrNotFound
	}
	s.disarmAutosave()
	s.active = doc
	s.mode = ModeEditor
	s.sourceTemplateID = ""
	return doc, nil
}

// NewBlankDocument resets the active target to a fresh blank document.
// Doubles as the cancel action: any pending preview or debounced edit is
// discarded without flushing.
func (s *Service) NewBlankDocument() models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmAutosave()
	s.active = models.NewBlank(models.CategoryTask)
	s.mode = ModeEditor
	s.sourceTemplateID = ""
	return s.active
}

// NewBlankTemplate makes a fresh blank template the active editing target.
func (s *Service) NewBlankTemplate() models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmAutosave()
	s.active = models.NewBlankTemplate()
	s.mode = ModeEditor
	s.sourceTemplateID = ""
	return s.active
}

// Save persists doc according to what is being saved: a template (with
// category-exclusive replacement), a template-preview instance (always a new
// document), or a normal document. The saved entity becomes the active
// editing target and the mode returns to EDITOR.
//
// When saving a template whose category is held by a different template,
// confirmReplace=false aborts with apperr.ErrCategoryOccupied and no state
// change; confirmReplace=true deletes the old template first.
func (s *Service) Save(ctx context.Context, doc models.Document, confirmReplace bool) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// An explicit save supersedes any pending debounced edit.
	s.disarmAutosave()

	switch {
	case doc.IsTemplate:
		return s.saveTemplate(ctx, doc, confirmReplace)
	case s.mode == ModeTemplatePreview:
		return s.savePreviewInstance(ctx, doc)
	default:
		return s.saveDocument(ctx, doc)
	}
}

func (s *Service) saveTemplate(ctx context.Context, tpl models.Document, confirmReplace bool) (models.Document, error) {
	if strings.TrimSpace(tpl.Title) == "" {
		tpl.Title = defaultTemplateTitle
	}
	if !tpl.TemplateCategory.Valid() {
		tpl.TemplateCategory = models.CategoryTask
	}
	tpl.Kind = ""

	// Category exclusivity: at most one template per category.
	if old, ok := findByCategory(s.templates, tpl.TemplateCategory); ok && old.ID != tpl.ID {
		if !confirmReplace {
			return models.Document{}, apperr.ErrCategoryOccupied
		}
		if err := s.store.DeleteTemplate(ctx, old.ID); err != nil {
			return models.Document{}, err
		}
		s.templates = removeByID(s.templates, old.ID)
		s.emit("template.deleted", old.ID)
	}

	tpl.UpdatedAt = time.Now().UnixMilli()
	event := "template.updated"
	if replaced := replaceByID(s.templates, tpl); !replaced {
		s.templates = append([]models.Document{tpl}, s.templates...)
		event = "template.created"
	}
	if err := s.store.SaveTemplates(ctx, s.templates); err != nil {
		return models.Document{}, err
	}

	s.active = tpl
	s.mode = ModeEditor
	s.sourceTemplateID = ""
	s.emit(event, tpl.ID)
	return tpl, nil
}

func (s *Service) savePreviewInstance(ctx context.Context, doc models.Document) (models.Document, error) {
	doc.ID = ident.New()
	doc.IsTemplate = false
	doc.TemplateCategory = ""
	doc.UpdatedAt = time.Now().UnixMilli()

	if strings.TrimSpace(doc.Title) == "" {
		if src, ok := findByID(s.templates, s.sourceTemplateID); ok {
			doc.Title = src.Title + copySuffix
		} else {
			doc.Title = defaultTitle
		}
	}

	s.documents = append([]models.Document{doc}, s.documents...)
	if err := s.store.SaveDocuments(ctx, s.documents); err != nil {
		return models.Document{}, err
	}

	s.active = doc
	s.mode = ModeEditor
	s.sourceTemplateID = ""
	s.emit("document.created", doc.ID)
	return doc, nil
}

func (s *Service) saveDocument(ctx context.Context, doc models.Document) (models.Document, error) {
	doc.IsTemplate = false
	doc.TemplateCategory = ""
	doc.UpdatedAt = time.Now().UnixMilli()

	event := "document.updated"
	if replaced := replaceByID(s.documents, doc); !replaced {
		if strings.TrimSpace(doc.Title) == "" {
			doc.Title = defaultTitle
		}
		s.documents = append([]models.Document{doc}, s.documents...)
		event = "document.created"
	}
	if err := s.store.SaveDocuments(ctx, s.documents); err != nil {
		return models.Document{}, err
	}

	s.active = doc
	s.mode = ModeEditor
	s.emit(event, doc.ID)
	return doc, nil
}

// RequestDelete records a pending delete target. Nothing is removed until
// ExecuteDelete.
func (s *Service) RequestDelete(targetType, id string) error {
	if targetType != TargetDocument && targetType != TargetTemplate {
		return fmt.Errorf("docservice: unknown delete target %q", targetType)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingDelete = &DeleteTarget{Type: targetType, ID: id}
	return nil
}

// CancelDelete discards the pending delete target.
func (s *Service) CancelDelete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingDelete = nil
}

// PendingDelete returns the pending delete target, if any.
func (s *Service) PendingDelete() *DeleteTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingDelete == nil {
		return nil
	}
	t := *s.pendingDelete
	return &t
}

// ExecuteDelete removes the pending target from memory and both backends.
// Deleting the active entity resets the editor to a fresh blank document;
// deleting the favorited document clears the favorite pointer.
func (s *Service) ExecuteDelete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.pendingDelete
	if target == nil {
		return fmt.Errorf("docservice: no pending delete")
	}
	s.pendingDelete = nil

	if target.Type == TargetDocument {
		s.documents = removeByID(s.documents, target.ID)
		if err := s.store.SaveDocuments(ctx, s.documents); err != nil {
			return err
		}
		if err := s.store.DeleteDocument(ctx, target.ID); err != nil {
			return err
		}
		if s.favoriteID == target.ID {
			if err := s.store.ClearFavoriteID(ctx); err != nil {
				return err
			}
			s.favoriteID = ""
			s.emit("favorite.updated", "")
		}
		if s.active.ID == target.ID {
			s.disarmAutosave()
			s.active = models.NewBlank(models.CategoryTask)
			s.mode = ModeEditor
			s.sourceTemplateID = ""
		}
		s.emit("document.deleted", target.ID)
		return nil
	}

	s.templates = removeByID(s.templates, target.ID)
	if err := s.store.SaveTemplates(ctx, s.templates); err != nil {
		return err
	}
	if err := s.store.DeleteTemplate(ctx, target.ID); err != nil {
		return err
	}
	if s.active.ID == target.ID {
		s.disarmAutosave()
		s.active = models.NewBlank(models.CategoryTask)
		s.mode = ModeEditor
		s.sourceTemplateID = ""
	}
	s.emit("template.deleted", target.ID)
	return nil
}

// SetFavorite points the favorite pointer at the given live document.
func (s *Service) SetFavorite(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := findByID(s.documents, id); !ok {
		return apperr.ErrNotFound
	}
	if err := s.store.SetFavoriteID(ctx, id); err != nil {
		return err
	}
	s.favoriteID = id
	s.emit("favorite.updated", id)
	return nil
}

// ClearFavorite clears the favorite pointer.
func (s *Service) ClearFavorite(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.ClearFavoriteID(ctx); err != nil {
		return err
	}
	s.favoriteID = ""
	s.emit("favorite.updated", "")
	return nil
}

// Reorder applies a reordered id sequence for one kind-partition ("task",
// "contract", "jangeuum", "dailyNote", or "templates"), leaving the relative
// order of every other partition untouched, and persists the full collection.
func (s *Service) Reorder(ctx context.Context, partition string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if partition == "templates" {
		reordered, err := reorderAll(s.templates, ids)
		if err != nil {
			return err
		}
		s.templates = reordered
		if err := s.store.SaveTemplates(ctx, s.templates); err != nil {
			return err
		}
		s.emit("template.updated", "")
		return nil
	}

	kind := models.Category(partition)
	if !kind.Valid() {
		return fmt.Errorf("docservice: unknown partition %q", partition)
	}
	reordered, err := reorderPartition(s.documents, kind, ids)
	if err != nil {
		return err
	}
	s.documents = reordered
	if err := s.store.SaveDocuments(ctx, s.documents); err != nil {
		return err
	}
	s.emit("document.updated", "")
	return nil
}

// Export produces the backup blob for the full backend state.
func (s *Service) Export(ctx context.Context) (*models.Backup, error) {
	return s.store.ExportAll(ctx)
}

// Restore validates and applies a backup blob, then reloads all state from
// the backend so memory reflects backend truth, not the blob.
func (s *Service) Restore(ctx context.Context, data []byte) error {
	b, err := models.ParseBackup(data)
	if err != nil {
		return err
	}
	if err := s.store.ImportAll(ctx, b); err != nil {
		return err
	}
	if err := s.Load(ctx); err != nil {
		return err
	}
	s.emit("state.restored", "")
	return nil
}

// --- helpers ---

func findByID(docs []models.Document, id string) (models.Document, bool) {
	for _, d := range docs {
		if d.ID == id {
			return d, true
		}
	}
	return models.Document{}, false
}

func findByCategory(templates []models.Document, c models.Category) (models.Document, bool) {
	for _, t := range templates {
		if t.TemplateCategory == c {
			return t, true
		}
	}
	return models.Document{}, false
}

func removeByID(docs []models.Document, id string) []models.Document {
	out := docs[:0]
	for _, d := range docs {
		if d.ID != id {
			out = append(out, d)
		}
	}
	return out
}

// replaceByID swaps the element with doc's id in place, reporting whether it
// was found.
func replaceByID(docs []models.Document, doc models.Document) bool {
	for i := range docs {
		if docs[i].ID == doc.ID {
			docs[i] = doc
			return true
		}
	}
	return false
}

func kindForCategory(c models.Category) models.Category {
	if c.Valid() {
		return c
	}
	return models.CategoryTask
}

// reorderAll reorders a whole collection by the given id sequence.
func reorderAll(docs []models.Document, ids []string) ([]models.Document, error) {
	if err := checkSameIDSet(docs, ids); err != nil {
		return nil, err
	}
	byID := make(map[string]models.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	out := make([]models.Document, len(ids))
	for i, id := range ids {
		out[i] = byID[id]
	}
	return out, nil
}

// reorderPartition rewrites only the documents of the given kind in the
// order of ids, leaving every other document at its current position.
func reorderPartition(docs []models.Document, kind models.Category, ids []string) ([]models.Document, error) {
	var members []models.Document
	for _, d := range docs {
		if d.EffectiveKind() == kind {
			members = append(members, d)
		}
	}
	if err := checkSameIDSet(members, ids); err != nil {
		return nil, err
	}
	byID := make(map[string]models.Document, len(members))
	for _, d := range members {
		byID[d.ID] = d
	}
	out := append([]models.Document(nil), docs...)
	k := 0
	for i := range out {
		if out[i].EffectiveKind() == kind {
			out[i] = byID[ids[k]]
			k++
		}
	}
	return out, nil
}

func checkSameIDSet(docs []models.Document, ids []string) error {
	if len(docs) != len(ids) {
		return fmt.Errorf("docservice: reorder: got %d ids, partition has %d", len(ids), len(docs))
	}
	seen := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		seen[d.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			return fmt.Errorf("docservice: reorder: id %q not in partition or duplicated", id)
		}
		delete(seen, id)
	}
	return nil
}
