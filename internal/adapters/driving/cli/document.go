package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
)

// statusPollInterval is how often upload --wait checks the document.
var statusPollInterval = 500 * time.Millisecond

var (
	uploadTitle       string
	uploadDescription string
	uploadWait        bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload [file]",
	Short: "Upload a document for indexing",
	Long: `Uploads a PDF, DOCX, Markdown or text file and schedules it for indexing.

The command returns as soon as the file is stored. Pass --wait to block
until indexing has completed or failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage uploaded documents",
	Long:  `List, inspect, delete, or reindex uploaded documents.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentChunksCmd = &cobra.Command{
	Use:   "chunks [doc-id]",
	Short: "Print the indexed chunks of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentChunks,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document",
	Long:  `Removes a document with its chunks, embeddings and stored file.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

var documentReindexCmd = &cobra.Command{
	Use:   "reindex [doc-id]",
	Short: "Index a document again",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentReindex,
}

// documentJSON is a flag for machine-readable output.
var documentJSON bool

func init() {
	uploadCmd.Flags().StringVarP(&uploadTitle, "title", "t", "", "document title (defaults to the file name)")
	uploadCmd.Flags().StringVarP(&uploadDescription, "description", "d", "", "document description")
	uploadCmd.Flags().BoolVarP(&uploadWait, "wait", "w", false, "wait until indexing finishes")
	rootCmd.AddCommand(uploadCmd)

	documentListCmd.Flags().BoolVar(&documentJSON, "json", false, "output as JSON")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentChunksCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	documentCmd.AddCommand(documentReindexCmd)
	rootCmd.AddCommand(documentCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	doc, err := uploadFile(cmd.Context(), args[0], uploadTitle, uploadDescription)
	if err != nil {
		return err
	}

	cmd.Printf("Uploaded %s (%s)\n", doc.Title, doc.ID)

	if !uploadWait {
		cmd.Println("Indexing in the background. Check with: docrag document get " + doc.ID)
		return nil
	}

	doc, err = waitForIndexing(cmd.Context(), doc.ID)
	if err != nil {
		return err
	}
	if doc.Status == domain.StatusFailed {
		return fmt.Errorf("indexing failed: %s", doc.Error)
	}

	cmd.Printf("Indexed %d chunks\n", doc.ChunkCount)
	return nil
}

// uploadFile opens path and uploads it for the current owner.
func uploadFile(ctx context.Context, path, title, description string) (*domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	doc, err := documentService.Upload(ctx, driving.UploadRequest{
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		Filename:    filepath.Base(path),
		Content:     f,
	})
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	return doc, nil
}

// waitForIndexing polls the document until it reaches a terminal status.
func waitForIndexing(ctx context.Context, documentID string) (*domain.Document, error) {
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		doc, err := documentService.Get(ctx, ownerID, documentID)
		if err != nil {
			return nil, fmt.Errorf("failed to get document: %w", err)
		}
		if doc.Status.IsTerminal() {
			return doc, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	docs, err := documentService.List(cmd.Context(), ownerID)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if documentJSON {
		data, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal documents: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	cmd.Println("Documents:")
	for i := range docs {
		cmd.Printf("  %s  %-10s  %s\n", docs[i].ID, docs[i].Status, docs[i].Title)
	}
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	doc, err := documentService.Get(cmd.Context(), ownerID, args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	printDocument(cmd, doc)
	return nil
}

func printDocument(cmd *cobra.Command, doc *domain.Document) {
	cmd.Printf("Document: %s\n", doc.ID)
	cmd.Printf("  Title:    %s\n", doc.Title)
	if doc.Description != "" {
		cmd.Printf("  About:    %s\n", doc.Description)
	}
	cmd.Printf("  File:     %s (%s)\n", doc.OriginalFilename, doc.FileType)
	cmd.Printf("  Status:   %s\n", doc.Status)
	if doc.Error != "" {
		cmd.Printf("  Error:    %s\n", doc.Error)
	}
	cmd.Printf("  Chunks:   %d\n", doc.ChunkCount)
	cmd.Printf("  Uploaded: %s\n", doc.CreatedAt.Format(time.RFC3339))
}

func runDocumentChunks(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	chunks, err := documentService.Chunks(cmd.Context(), ownerID, args[0])
	if err != nil {
		return fmt.Errorf("failed to get chunks: %w", err)
	}

	if len(chunks) == 0 {
		cmd.Println("No chunks. The document may not be indexed yet.")
		return nil
	}

	for i := range chunks {
		cmd.Printf("--- chunk %d (%s) ---\n", chunks[i].Index, chunks[i].ID)
		cmd.Println(chunks[i].Content)
	}
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	if err := documentService.Delete(cmd.Context(), ownerID, args[0]); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	cmd.Printf("Document %s deleted.\n", args[0])
	return nil
}

func runDocumentReindex(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	doc, err := documentService.Reindex(cmd.Context(), ownerID, args[0])
	if err != nil {
		return fmt.Errorf("failed to reindex document: %w", err)
	}

	cmd.Printf("Document %s scheduled for indexing (status: %s).\n", doc.ID, doc.Status)
	return nil
}
