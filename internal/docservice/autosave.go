package docservice

import (
	"context"
	"log/slog"
	"time"

	"github.com/smartyoni/checkdoc/internal/models"
)

// AutosaveEdit records an in-progress edit of the active entity and (re)arms
// the debounce timer: only the last edit within a quiet window is persisted.
// Edits made in preview mode are not auto-saved; saving a preview is always
// an explicit action.
func (s *Service) AutosaveEdit(doc models.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != ModeEditor || doc.ID != s.active.ID {
		return
	}
	s.pendingEdit = &doc
	if s.saveTimer == nil {
		s.saveTimer = time.AfterFunc(s.debounce, s.flushAutosave)
	} else {
		s.saveTimer.Reset(s.debounce)
	}
}

// flushAutosave persists the pending edit, if it is still the active entity.
func (s *Service) flushAutosave() {
	s.mu.Lock()
	pending := s.pendingEdit
	s.pendingEdit = nil
	stale := pending == nil || s.mode != ModeEditor || pending.ID != s.active.ID
	s.mu.Unlock()

	if stale {
		return
	}
	if _, err := s.Save(context.Background(), *pending, false); err != nil {
		s.logger.Warn("docservice: autosave failed",
			slog.String("id", pending.ID), slog.String("error", err.Error()))
	}
}

// disarmAutosave drops any pending debounced write without flushing it.
// Callers must hold s.mu.
func (s *Service) disarmAutosave() {
	s.pendingEdit = nil
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
}
