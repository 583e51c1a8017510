// Package cmd provides the CLI commands for the microblog core service.
package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "microblog",
		Short: "Microblog core: search indexing, background tasks, notifications",
		Long: `The microblog core service keeps the full-text search index consistent
with the primary store, executes background jobs on a durable queue, and
delivers progress and completion events through per-user notification feeds.

Configuration comes from config.yaml and MICROBLOG_* environment variables.`,
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newReindexCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
