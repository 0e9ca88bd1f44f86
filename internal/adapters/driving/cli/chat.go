package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docrag/internal/adapters/driving/tui"
)

var (
	chatConversation string
	chatDocuments    []string
)

// isTerminal reports whether stdout is a terminal. Replaced in tests.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with your documents in the terminal",
	Long: `Launch an interactive chat over your indexed documents.

Each answer lists the document chunks it was based on.

Controls:
  Enter     - Send question
  Ctrl+N    - New conversation
  PgUp/PgDn - Scroll
  Esc       - Quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatConversation, "conversation", "c", "", "resume a conversation")
	chatCmd.Flags().StringSliceVar(&chatDocuments, "doc", nil, "restrict the chat to this document ID")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) (err error) {
	if queryService == nil {
		return errors.New("query service not configured")
	}
	if !isTerminal() {
		return errors.New("chat needs an interactive terminal; use 'docrag ask' instead")
	}

	// Add panic recovery to get stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			err = fmt.Errorf("panic in chat: %v", r)
		}
	}()

	app, err := tui.NewApp(&tui.Ports{
		Query:          queryService,
		OwnerID:        ownerID,
		DocumentIDs:    chatDocuments,
		ConversationID: chatConversation,
	})
	if err != nil {
		return fmt.Errorf("failed to create chat: %w", err)
	}
	app.WithContext(cmd.Context())

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat error: %w", err)
	}
	return nil
}
