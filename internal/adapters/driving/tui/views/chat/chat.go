// Package chat provides the conversation view for the TUI.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docrag/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/docrag/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/docrag/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docrag/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docrag/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
)

// ErrNoQueryService is returned when a question is sent without a query service.
var ErrNoQueryService = errors.New("query service not available")

// reservedLines is the height taken by the header, input and status bar.
const reservedLines = 7

// turn is one question with its answer.
type turn struct {
	question string
	answer   string
	sources  []domain.Source
	pending  bool
}

// Config configures a chat view.
type Config struct {
	Query          driving.QueryService
	OwnerID        string
	DocumentIDs    []string
	ConversationID string
}

// View is a single chat: a scrollback of turns above a question input.
type View struct {
	styles     *styles.Styles
	keymap     *keymap.KeyMap
	input      *input.QuestionInput
	transcript viewport.Model
	statusbar  *status.Bar

	query       driving.QueryService
	ownerID     string
	documentIDs []string
	ctx         context.Context

	conversationID string
	title          string
	turns          []turn
	err            error

	width  int
	height int
	ready  bool
}

// NewView creates a new chat view.
func NewView(s *styles.Styles, km *keymap.KeyMap, cfg Config) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:         s,
		keymap:         km,
		input:          input.NewQuestionInput(s),
		transcript:     viewport.New(80, 24-reservedLines),
		statusbar:      status.NewBar(s, km),
		query:          cfg.Query,
		ownerID:        cfg.OwnerID,
		documentIDs:    cfg.DocumentIDs,
		ctx:            context.Background(),
		conversationID: cfg.ConversationID,
		width:          80,
		height:         24,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view and loads a resumed conversation.
func (v *View) Init() tea.Cmd {
	if v.conversationID == "" {
		return v.input.Init()
	}
	v.statusbar.SetState(status.StateThinking)
	return tea.Batch(v.input.Init(), v.loadConversation(v.conversationID))
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.AnswerReceived:
		v.handleAnswer(msg)
		return v, nil

	case messages.ConversationLoaded:
		v.handleConversation(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// handleKeyMsg processes keyboard input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	switch {
	case keymap.Matches(keyStr, v.keymap.Quit):
		return v, func() tea.Msg { return messages.Quit{} }

	case keymap.Matches(keyStr, v.keymap.NewConversation):
		v.Reset()
		v.statusbar.SetMessage("New conversation")
		return v, nil

	case keymap.Matches(keyStr, v.keymap.ScrollUp):
		v.transcript.ViewUp()
		return v, nil

	case keymap.Matches(keyStr, v.keymap.ScrollDown):
		v.transcript.ViewDown()
		return v, nil

	case keymap.Matches(keyStr, v.keymap.Send):
		question := strings.TrimSpace(v.input.Value())
		if question == "" || v.Pending() {
			return v, nil
		}
		v.input.Reset()
		v.err = nil
		v.turns = append(v.turns, turn{question: question, pending: true})
		v.statusbar.SetMessage("")
		v.statusbar.SetState(status.StateThinking)
		v.refresh()
		return v, v.ask(question)
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

// ask sends a question and waits for the final answer.
func (v *View) ask(question string) tea.Cmd {
	req := driving.QueryRequest{
		OwnerID:        v.ownerID,
		Question:       question,
		ConversationID: v.conversationID,
		DocumentIDs:    v.documentIDs,
		Wait:           true,
	}
	return func() tea.Msg {
		if v.query == nil {
			return messages.AnswerReceived{Question: question, Err: ErrNoQueryService}
		}
		resp, err := v.query.Query(v.ctx, req)
		return messages.AnswerReceived{Question: question, Response: resp, Err: err}
	}
}

// loadConversation fetches an existing conversation.
func (v *View) loadConversation(id string) tea.Cmd {
	return func() tea.Msg {
		if v.query == nil {
			return messages.ConversationLoaded{Err: ErrNoQueryService}
		}
		view, err := v.query.Conversation(v.ctx, v.ownerID, id)
		return messages.ConversationLoaded{View: view, Err: err}
	}
}

// handleAnswer fills in the pending turn.
func (v *View) handleAnswer(msg messages.AnswerReceived) {
	last := len(v.turns) - 1
	if last < 0 || !v.turns[last].pending {
		return
	}

	if msg.Err != nil {
		// The question was not accepted; drop it so it can be asked again.
		v.turns = v.turns[:last]
		v.input.SetValue(msg.Question)
		v.setError(msg.Err)
		v.refresh()
		return
	}

	v.turns[last] = turn{
		question: msg.Question,
		answer:   msg.Response.Answer,
		sources:  msg.Response.Sources,
	}
	if v.conversationID == "" {
		v.title = domain.ConversationTitle(msg.Question)
	}
	v.conversationID = msg.Response.ConversationID
	v.statusbar.SetState(status.StateReady)
	v.statusbar.SetConversation(v.title, len(v.turns))
	v.refresh()
}

// handleConversation rebuilds the turns of a resumed conversation.
func (v *View) handleConversation(msg messages.ConversationLoaded) {
	if msg.Err != nil {
		v.setError(msg.Err)
		return
	}

	v.conversationID = msg.View.Conversation.ID
	v.title = msg.View.Conversation.Title
	v.turns = v.turns[:0]
	for i := range msg.View.Messages {
		m := &msg.View.Messages[i]
		if m.Role == domain.RoleUser {
			v.turns = append(v.turns, turn{question: m.Content})
			continue
		}
		if len(v.turns) == 0 {
			continue
		}
		last := &v.turns[len(v.turns)-1]
		last.answer = m.Content
		last.sources = m.Sources
	}
	v.statusbar.SetState(status.StateReady)
	v.statusbar.SetConversation(v.title, len(v.turns))
	v.refresh()
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

// refresh re-renders the transcript and scrolls to the latest turn.
func (v *View) refresh() {
	v.transcript.SetContent(v.renderTurns())
	v.transcript.GotoBottom()
}

// renderTurns renders all turns wrapped to the view width.
func (v *View) renderTurns() string {
	if len(v.turns) == 0 {
		return v.styles.Muted.Render("Ask a question to start a conversation.")
	}

	wrap := lipgloss.NewStyle().Width(v.width - 2)
	var b strings.Builder
	for i := range v.turns {
		t := &v.turns[i]
		b.WriteString(v.styles.User.Render("You: "))
		b.WriteString(wrap.Render(t.question))
		b.WriteString("\n")

		b.WriteString(v.styles.Assistant.Render("docrag: "))
		if t.pending {
			b.WriteString(v.styles.Muted.Render("Thinking..."))
		} else {
			b.WriteString(wrap.Render(t.answer))
		}
		b.WriteString("\n")

		for j, src := range t.sources {
			title := src.DocumentTitle
			if title == "" {
				title = src.DocumentID
			}
			b.WriteString(v.styles.Source.Render(fmt.Sprintf("[%d] %s (%.2f)", j+1, title, src.Similarity)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// View renders the chat view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	header := v.styles.Title.Render("docrag")
	if v.title != "" {
		header += v.styles.Muted.Render("  " + v.title)
	}

	sections := []string{header, "", v.transcript.View(), v.input.View()}
	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()))
	}
	sections = append(sections, v.statusbar.View())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	transcriptHeight := height - reservedLines
	if transcriptHeight < 3 {
		transcriptHeight = 3
	}
	v.transcript.Width = width
	v.transcript.Height = transcriptHeight
	v.input.SetWidth(width)
	v.statusbar.SetWidth(width)
	v.refresh()
}

// Reset starts a new conversation.
func (v *View) Reset() {
	v.conversationID = ""
	v.title = ""
	v.turns = nil
	v.err = nil
	v.input.Reset()
	v.statusbar.Clear()
	v.refresh()
}

// Pending reports whether an answer is outstanding.
func (v *View) Pending() bool {
	return len(v.turns) > 0 && v.turns[len(v.turns)-1].pending
}

// ConversationID returns the current conversation, empty before the first answer.
func (v *View) ConversationID() string {
	return v.conversationID
}

// Turns returns the number of questions asked.
func (v *View) Turns() int {
	return len(v.turns)
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}
