package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
)

var (
	askConversation string
	askDocuments    []string
	askMaxDocs      int
	askNoWait       bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about your documents",
	Long: `Answers a question from the indexed documents and prints the sources used.

Every question is recorded in a conversation. Pass --conversation to continue
one; earlier turns are included as context. Use --doc (repeatable) to limit
the search to specific documents.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var conversationCmd = &cobra.Command{
	Use:   "conversation",
	Short: "Browse conversations",
}

var conversationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, most recent first",
	Args:  cobra.NoArgs,
	RunE:  runConversationList,
}

var conversationShowCmd = &cobra.Command{
	Use:   "show [conversation-id]",
	Short: "Show a conversation with its messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationShow,
}

func init() {
	askCmd.Flags().StringVarP(&askConversation, "conversation", "c", "", "continue an existing conversation")
	askCmd.Flags().StringSliceVar(&askDocuments, "doc", nil, "restrict the search to this document ID")
	askCmd.Flags().IntVarP(&askMaxDocs, "max-docs", "n", 0, "number of chunks to retrieve (0 = configured default)")
	askCmd.Flags().BoolVar(&askNoWait, "no-wait", false, "return without waiting for the answer")
	rootCmd.AddCommand(askCmd)

	conversationCmd.AddCommand(conversationListCmd)
	conversationCmd.AddCommand(conversationShowCmd)
	rootCmd.AddCommand(conversationCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	resp, err := queryService.Query(cmd.Context(), driving.QueryRequest{
		OwnerID:        ownerID,
		Question:       strings.Join(args, " "),
		ConversationID: askConversation,
		DocumentIDs:    askDocuments,
		MaxDocuments:   askMaxDocs,
		Wait:           !askNoWait,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	cmd.Println(resp.Answer)
	printSources(cmd, resp.Sources)
	cmd.Println()
	cmd.Printf("Conversation: %s\n", resp.ConversationID)
	return nil
}

func printSources(cmd *cobra.Command, sources []domain.Source) {
	if len(sources) == 0 {
		return
	}
	cmd.Println()
	cmd.Println("Sources:")
	for i, src := range sources {
		title := src.DocumentTitle
		if title == "" {
			title = src.DocumentID
		}
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, src.Similarity)
	}
}

func runConversationList(cmd *cobra.Command, _ []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	convs, err := queryService.ListConversations(cmd.Context(), ownerID)
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	if len(convs) == 0 {
		cmd.Println("No conversations yet.")
		return nil
	}

	for i := range convs {
		cmd.Printf("  %s  %s  %s\n", convs[i].ID, convs[i].UpdatedAt.Format(time.DateTime), convs[i].Title)
	}
	return nil
}

func runConversationShow(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	view, err := queryService.Conversation(cmd.Context(), ownerID, args[0])
	if err != nil {
		return fmt.Errorf("failed to get conversation: %w", err)
	}

	cmd.Printf("Conversation: %s\n", view.Conversation.Title)
	cmd.Println()
	for i := range view.Messages {
		msg := &view.Messages[i]
		speaker := "You"
		if msg.Role == domain.RoleAssistant {
			speaker = "docrag"
		}
		cmd.Printf("%s: %s\n", speaker, msg.Content)
		printSources(cmd, msg.Sources)
		cmd.Println()
	}
	return nil
}
