// Package cli provides the cobra command tree for docrag.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docrag/internal/core/domain"
	"github.com/custodia-labs/docrag/internal/core/ports/driving"
	"github.com/custodia-labs/docrag/internal/logger"
)

// version is set by the build.
var version = "dev"

var verbose bool

// Services injected by the composition root.
var (
	documentService driving.DocumentService
	queryService    driving.QueryService
	settingsService driving.SettingsService

	// ownerID is the user every command acts for.
	ownerID = domain.DefaultUserID

	// inboxDir is the default directory for the watch command.
	inboxDir string
)

var rootCmd = &cobra.Command{
	Use:   "docrag",
	Short: "Ask questions about your documents",
	Long: `docrag indexes uploaded PDF, DOCX, Markdown and text files and answers
questions about them with a language model, citing the chunks it used.

Uploads are indexed in the background. Questions are answered in the
background too; pass --no-wait to return immediately.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Services holds the driving ports used by the commands.
type Services struct {
	Document driving.DocumentService
	Query    driving.QueryService
	Settings driving.SettingsService

	// OwnerID is the configured user. Empty keeps the default.
	OwnerID string

	// InboxDir is the default directory for the watch command.
	InboxDir string
}

// SetServices injects the services used by the commands.
func SetServices(s Services) {
	documentService = s.Document
	queryService = s.Query
	settingsService = s.Settings
	if s.OwnerID != "" {
		ownerID = s.OwnerID
	}
	inboxDir = s.InboxDir
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command. Cancelling ctx stops long-running commands.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
