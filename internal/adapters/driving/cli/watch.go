package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docrag/internal/adapters/driving/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Upload files dropped into a directory",
	Long: `Watches a directory and uploads every supported file created in it.

Without an argument the configured inbox (watch.inbox) is used.
Runs until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	dir := inboxDir
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		return errors.New("no directory given and watch.inbox is not set")
	}

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", dir)
	return watcher.New(dir, ownerID, documentService).Run(cmd.Context())
}
