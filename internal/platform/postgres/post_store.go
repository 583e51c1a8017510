package postgres

import (
	"context"
	"fmt"

	"github.com/pdenham/microblog/internal/domain"
	"github.com/pdenham/microblog/internal/platform/logger"
	"github.com/pdenham/microblog/internal/search"
	"github.com/pdenham/microblog/internal/store"
)

// PostStore implements post persistence against PostgreSQL. Write methods
// require a session binding (WithSession) so the change tracker sees every
// mutation; read methods work against either the pool or a session.
type PostStore struct {
	db   store.DBTX
	sess *store.Session
}

// NewPostStore creates a PostStore using the given database handle.
func NewPostStore(db store.DBTX) *PostStore {
	return &PostStore{db: db}
}

// WithSession returns a PostStore bound to the session's transaction. Writes
// through the returned store are recorded on the session for commit-time
// index propagation.
func (s *PostStore) WithSession(sess *store.Session) *PostStore {
	return &PostStore{db: sess, sess: sess}
}

// Create inserts a post and fills in its assigned id.
func (s *PostStore) Create(ctx context.Context, post *domain.Post) error {
	if err := post.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO posts (body, user_id, language, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		post.Body,
		post.UserID,
		nullableString(post.Language),
		post.Timestamp,
	).Scan(&post.ID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to create post",
			"user_id", post.UserID,
			"error", err)
		return MapError(err)
	}

	if s.sess != nil {
		s.sess.RecordAdd(post)
	}
	return nil
}

// Update rewrites a post's mutable fields.
func (s *PostStore) Update(ctx context.Context, post *domain.Post) error {
	if err := post.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE posts
		SET body = $1, language = $2
		WHERE id = $3
	`
	result, err := s.db.ExecContext(ctx, query,
		post.Body,
		nullableString(post.Language),
		post.ID,
	)
	if err != nil {
		return MapError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrPostNotFound
	}

	if s.sess != nil {
		s.sess.RecordUpdate(post)
	}
	return nil
}

// Delete removes a post.
func (s *PostStore) Delete(ctx context.Context, post *domain.Post) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, post.ID)
	if err != nil {
		return MapError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrPostNotFound
	}

	if s.sess != nil {
		s.sess.RecordDelete(post)
	}
	return nil
}

// GetByID retrieves a post by its id.
func (s *PostStore) GetByID(ctx context.Context, id int64) (*domain.Post, error) {
	row := s.db.QueryRowContext(ctx, postSelect+` WHERE id = $1`, id)
	post, err := scanPost(row)
	if err != nil {
		return nil, MapError(err)
	}
	return post, nil
}

// ListByUser returns a user's posts, oldest first.
func (s *PostStore) ListByUser(ctx context.Context, userID int64) ([]*domain.Post, error) {
	rows, err := s.db.QueryContext(ctx,
		postSelect+` WHERE user_id = $1 ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, MapError(err)
	}
	return collectPosts(rows)
}

// ListAll returns every post, for full reindexing.
func (s *PostStore) ListAll(ctx context.Context) ([]*domain.Post, error) {
	rows, err := s.db.QueryContext(ctx, postSelect+` ORDER BY id ASC`)
	if err != nil {
		return nil, MapError(err)
	}
	return collectPosts(rows)
}

// GetByIDs fetches the given posts and returns them in exactly the order of
// ids. Missing ids are skipped.
func (s *PostStore) GetByIDs(ctx context.Context, ids []int64) ([]*domain.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, postSelect+` WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, MapError(err)
	}
	fetched, err := collectPosts(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*domain.Post, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}
	ordered := make([]*domain.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

// Search queries the index for matching posts and re-fetches the rows from
// the primary store preserving the index's relevance order. A zero total
// short-circuits without a primary-store round trip.
func (s *PostStore) Search(
	ctx context.Context,
	index search.Client,
	query string,
	page, pageSize int,
) ([]*domain.Post, uint64, error) {
	ids, total, err := index.Query(ctx, domain.PostNamespace, query, page, pageSize)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, nil
	}

	posts, err := s.GetByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

const postSelect = `SELECT id, body, user_id, COALESCE(language, ''), created_at FROM posts`

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*domain.Post, error) {
	var p domain.Post
	if err := row.Scan(&p.ID, &p.Body, &p.UserID, &p.Language, &p.Timestamp); err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPosts(rows interface {
	rowScanner
	Next() bool
	Err() error
	Close() error
}) ([]*domain.Post, error) {
	defer func() { _ = rows.Close() }()

	var posts []*domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}
	return posts, nil
}

// nullableString maps "" to NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
