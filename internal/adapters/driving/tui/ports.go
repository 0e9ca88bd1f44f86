// Package tui provides an interactive terminal chat for docrag.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the TUI.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Query answers questions and keeps the conversation.
	Query driving.QueryService

	// OwnerID is the user the chat acts for.
	OwnerID string

	// DocumentIDs optionally restricts every question to these documents.
	DocumentIDs []string

	// ConversationID resumes an existing conversation. Empty starts a new one.
	ConversationID string
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	if p.OwnerID == "" {
		return ErrMissingOwner
	}
	return nil
}
