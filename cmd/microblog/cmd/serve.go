package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pdenham/microblog/internal/api"
)

// newServeCmd creates the serve command, which runs the HTTP API server.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			router := api.NewRouter(
				api.NewUserHandler(app.users),
				api.NewPostHandler(app.db, app.posts, app.tracker),
				api.NewSearchHandler(app.posts, app.index),
				api.NewTaskHandler(app.db, app.tasks, app.registry, app.tracker),
				api.NewNotificationHandler(app.feed),
			)

			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", app.cfg.Server.Port),
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				app.logger.Info("starting server", "port", app.cfg.Server.Port)
				if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				app.logger.Info("shutting down server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}
