package api

import (
	"github.com/smartyoni/checkdoc/internal/docservice"
	"github.com/smartyoni/checkdoc/internal/models"
)

// CreateDocumentRequest is the request body for creating a document by kind.
type CreateDocumentRequest struct {
	Kind models.Category `json:"kind" example:"task"`
}

// SaveRequest is the request body for the save operation. ConfirmReplace
// authorizes replacing another template that holds the same category.
type SaveRequest struct {
	Document       models.Document `json:"document"`
	ConfirmReplace bool            `json:"confirmReplace"`
}

// DeleteRequest is the request body for recording a pending delete target.
type DeleteRequest struct {
	Type string `json:"type" example:"document"`
	ID   string `json:"id"`
}

// ReorderRequest is the request body for reordering one kind-partition.
type ReorderRequest struct {
	Partition string   `json:"partition" example:"task"`
	IDs       []string `json:"ids"`
}

// RestoreResponse reports the outcome of a restore.
type RestoreResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// State is the controller snapshot response (aliased from the domain layer).
type State = docservice.State
