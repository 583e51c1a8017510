package cmd

import (
	"github.com/spf13/cobra"

	"github.com/pdenham/microblog/internal/domain"
)

// newReindexCmd creates the reindex command, which rebuilds the search index
// from the primary store. Run it after index loss or a backend switch.
func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the primary store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			posts, err := app.posts.ListAll(ctx)
			if err != nil {
				return err
			}

			entities := make([]domain.Searchable, 0, len(posts))
			for _, p := range posts {
				entities = append(entities, p)
			}
			if err := app.sync.ReindexAll(ctx, domain.PostNamespace, entities); err != nil {
				return err
			}

			app.logger.Info("reindex complete", "post_count", len(posts))
			return nil
		},
	}
}
