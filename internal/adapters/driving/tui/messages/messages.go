// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
)

// AnswerReceived carries the final answer for a question.
type AnswerReceived struct {
	Question string
	Response *driving.QueryResponse
	Err      error
}

// ConversationLoaded carries an existing conversation to resume.
type ConversationLoaded struct {
	View *domain.ConversationView
	Err  error
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
