// Package models defines the domain types for checkdoc.
package models

import (
	"encoding/json"
	"time"

	"github.com/smartyoni/checkdoc/internal/ident"
)

// Category is the closed set of document kinds. On a live document it states
// what kind of document it is; on a template it states which kind the
// template seeds.
type Category string

// Known categories.
const (
	CategoryTask      Category = "task"
	CategoryContract  Category = "contract"
	CategoryJangeuum  Category = "jangeuum"
	CategoryDailyNote Category = "dailyNote"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryTask, CategoryContract, CategoryJangeuum, CategoryDailyNote:
		return true
	}
	return false
}

// ChecklistItem is one entry in a document's ordered checklist.
// IDs are unique only within the parent checklist.
type ChecklistItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsChecked bool   `json:"isChecked"`
	Memo      string `json:"memo,omitempty"`
}

// Document represents both live documents and templates; IsTemplate
// discriminates. Checklist order is meaningful (user-chosen sequence).
// UpdatedAt is milliseconds since epoch, stamped on every persisted mutation;
// it must not be read as a creation time.
type Document struct {
	ID         string
	Title      string
	Content    string
	Checklist  []ChecklistItem
	UpdatedAt  int64
	IsTemplate bool

	// Kind is meaningful only when IsTemplate is false. The zero value
	// means CategoryTask.
	Kind Category

	// TemplateCategory is meaningful only when IsTemplate is true.
	TemplateCategory Category
}

// EffectiveKind returns the live-document kind, defaulting to task.
func (d Document) EffectiveKind() Category {
	if d.Kind == "" {
		return CategoryTask
	}
	return d.Kind
}

// documentJSON is the stored wire shape. Live-document kinds are persisted as
// the legacy boolean triple so records written by earlier releases keep
// round-tripping.
type documentJSON struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Content          string          `json:"content"`
	Checklist        []ChecklistItem `json:"checklist"`
	UpdatedAt        int64           `json:"updatedAt"`
	IsTemplate       bool            `json:"isTemplate"`
	IsDailyNote      bool            `json:"isDailyNote,omitempty"`
	IsContract       bool            `json:"isContract,omitempty"`
	IsJangeuum       bool            `json:"isJangeuum,omitempty"`
	TemplateCategory Category        `json:"templateCategory,omitempty"`
}

// MarshalJSON converts Kind to the legacy boolean flags at the persistence
// boundary.
func (d Document) MarshalJSON() ([]byte, error) {
	out := documentJSON{
		ID:               d.ID,
		Title:            d.Title,
		Content:          d.Content,
		Checklist:        d.Checklist,
		UpdatedAt:        d.UpdatedAt,
		IsTemplate:       d.IsTemplate,
		TemplateCategory: d.TemplateCategory,
	}
	if out.Checklist == nil {
		out.Checklist = []ChecklistItem{}
	}
	if !d.IsTemplate {
		switch d.Kind {
		case CategoryDailyNote:
			out.IsDailyNote = true
		case CategoryContract:
			out.IsContract = true
		case CategoryJangeuum:
			out.IsJangeuum = true
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON derives Kind from the legacy boolean flags.
func (d *Document) UnmarshalJSON(data []byte) error {
	var in documentJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*d = Document{
		ID:               in.ID,
		Title:            in.Title,
		Content:          in.Content,
		Checklist:        in.Checklist,
		UpdatedAt:        in.UpdatedAt,
		IsTemplate:       in.IsTemplate,
		TemplateCategory: in.TemplateCategory,
	}
	if !in.IsTemplate {
		switch {
		case in.IsDailyNote:
			d.Kind = CategoryDailyNote
		case in.IsContract:
			d.Kind = CategoryContract
		case in.IsJangeuum:
			d.Kind = CategoryJangeuum
		default:
			d.Kind = CategoryTask
		}
	}
	return nil
}

// NewBlank returns an empty live document of the given kind with a fresh id.
func NewBlank(kind Category) Document {
	return Document{
		ID:        ident.New(),
		Checklist: []ChecklistItem{},
		UpdatedAt: time.Now().UnixMilli(),
		Kind:      kind,
	}
}

// NewBlankTemplate returns an empty template with a fresh id and no category.
func NewBlankTemplate() Document {
	return Document{
		ID:         ident.New(),
		Checklist:  []ChecklistItem{},
		UpdatedAt:  time.Now().UnixMilli(),
		IsTemplate: true,
	}
}

// Materialize instantiates a live document of the given kind from template t:
// fresh entity id, deep-copied checklist with fresh item ids, every item
// unchecked.
func Materialize(t Document, kind Category) Document {
	items := make([]ChecklistItem, len(t.Checklist))
	for i, it := range t.Checklist {
		items[i] = ChecklistItem{
			ID:   ident.New(),
			Text: it.Text,
			Memo: it.Memo,
		}
	}
	return Document{
		ID:        ident.New(),
		Title:     t.Title,
		Content:   t.Content,
		Checklist: items,
		UpdatedAt: time.Now().UnixMilli(),
		Kind:      kind,
	}
}
