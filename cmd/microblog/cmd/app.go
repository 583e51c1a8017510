package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pdenham/microblog/internal/config"
	"github.com/pdenham/microblog/internal/job"
	"github.com/pdenham/microblog/internal/notify"
	"github.com/pdenham/microblog/internal/platform/logger"
	"github.com/pdenham/microblog/internal/platform/postgres"
	"github.com/pdenham/microblog/internal/search"
)

// app holds the wired dependencies shared by the subcommands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB

	index   search.Client
	sync    *search.Synchronizer
	tracker *search.Tracker

	users         *postgres.UserStore
	posts         *postgres.PostStore
	taskRecords   *postgres.TaskRecordStore
	notifications *postgres.NotificationStore
	queue         *postgres.JobQueue

	feed     *notify.Service
	tasks    *job.Service
	registry *job.Registry
}

// newApp loads configuration and wires the application graph, bottom-up:
// config, logger, database, index client, stores, services.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.Setup(cfg.Server.LogLevel)

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, err
	}

	index, err := newIndexClient(cfg.Search)
	if err != nil {
		return nil, err
	}

	sync := search.NewSynchronizer(index, log)
	tracker := search.NewTracker(sync, log)

	users := postgres.NewUserStore(db)
	posts := postgres.NewPostStore(db)
	taskRecords := postgres.NewTaskRecordStore(db)
	notifications := postgres.NewNotificationStore(db)
	queue := postgres.NewJobQueue(db)

	feed := notify.NewService(notifications, log)
	tasks := job.NewService(queue, taskRecords, log)

	registry := job.NewRegistry()
	registry.Register(job.JobExportPosts, job.NewExportPostsJob(posts, &job.LogDelivery{Logger: log}))

	return &app{
		cfg:           cfg,
		logger:        log,
		db:            db,
		index:         index,
		sync:          sync,
		tracker:       tracker,
		users:         users,
		posts:         posts,
		taskRecords:   taskRecords,
		notifications: notifications,
		queue:         queue,
		feed:          feed,
		tasks:         tasks,
		registry:      registry,
	}, nil
}

// close releases the app's resources.
func (a *app) close() {
	if closer, ok := a.index.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.logger.Error("failed to close index", "error", err)
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", "error", err)
	}
}

// newIndexClient builds the configured index backend.
func newIndexClient(cfg config.SearchConfig) (search.Client, error) {
	switch cfg.Backend {
	case "elasticsearch":
		return search.NewESClient(cfg.URL, cfg.Timeout), nil
	case "bleve":
		return search.NewBleveIndex(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown search backend %q", cfg.Backend)
	}
}
