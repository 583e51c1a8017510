package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pdenham/microblog/internal/domain"
)

// JobExportPosts is the job name for exporting a user's posts.
const JobExportPosts = "export_posts"

// PostLister is the slice of the post store the export job needs.
type PostLister interface {
	ListByUser(ctx context.Context, userID int64) ([]*domain.Post, error)
}

// Delivery hands a finished export to the user. Delivery mechanics (email
// attachment, download link) are owned by an external collaborator; this is
// the narrow seam into it.
type Delivery interface {
	DeliverExport(ctx context.Context, userID int64, export []byte) error
}

// LogDelivery is a Delivery that only logs the export, for deployments
// without a configured delivery channel.
type LogDelivery struct {
	Logger *slog.Logger
}

// DeliverExport implements Delivery.
func (d *LogDelivery) DeliverExport(ctx context.Context, userID int64, export []byte) error {
	d.Logger.Info("export ready",
		"user_id", userID,
		"size_bytes", len(export))
	return nil
}

// exportedPost is the wire shape of one post in an export.
type exportedPost struct {
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExportPostsJob returns the export_posts handler: it walks the user's
// posts, reporting progress per post, then hands the JSON export to the
// delivery collaborator. Final progress (100) is written by the worker
// runtime, so the handler only reports intermediate values.
func NewExportPostsJob(posts PostLister, delivery Delivery) Func {
	return func(ctx context.Context, j *ActiveJob) error {
		if err := j.SetProgress(ctx, 0); err != nil {
			return err
		}

		all, err := posts.ListByUser(ctx, j.UserID)
		if err != nil {
			return fmt.Errorf("failed to load posts: %w", err)
		}

		exported := make([]exportedPost, 0, len(all))
		for i, post := range all {
			exported = append(exported, exportedPost{
				Body:      post.Body,
				Timestamp: post.Timestamp,
			})
			if err := j.SetProgress(ctx, (i+1)*100/len(all)); err != nil {
				return err
			}
		}

		data, err := json.Marshal(exported)
		if err != nil {
			return fmt.Errorf("failed to encode export: %w", err)
		}
		return delivery.DeliverExport(ctx, j.UserID, data)
	}
}
