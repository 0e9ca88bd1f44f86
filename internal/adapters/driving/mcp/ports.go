package mcp

import (
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Query answers questions and exposes conversations.
	Query driving.QueryService

	// Document manages uploaded documents.
	Document driving.DocumentService

	// OwnerID is the user every request acts for.
	OwnerID string
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	if p.Document == nil {
		return ErrMissingDocumentService
	}
	if p.OwnerID == "" {
		return ErrMissingOwner
	}
	return nil
}
