package postgres

import (
	"context"
	"fmt"

	"github.com/pdenham/microblog/internal/domain"
	"github.com/pdenham/microblog/internal/store"
)

// UserStore implements user persistence against PostgreSQL. The core only
// needs enough of it to own tasks and notifications; account management is
// upstream's job.
type UserStore struct {
	db store.DBTX
}

// NewUserStore creates a UserStore using the given database handle.
func NewUserStore(db store.DBTX) *UserStore {
	return &UserStore{db: db}
}

// Create inserts a user and fills in its assigned id.
func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO users (username, email, about_me)
		VALUES ($1, $2, $3)
		RETURNING id, last_seen, created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		user.Username,
		user.Email,
		user.AboutMe,
	).Scan(&user.ID, &user.LastSeen, &user.CreatedAt)
	if err != nil {
		return MapError(err)
	}
	return nil
}

// GetByID retrieves a user by id.
func (s *UserStore) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `
		SELECT id, username, email, about_me, last_seen, created_at
		FROM users
		WHERE id = $1
	`
	var u domain.User
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&u.ID, &u.Username, &u.Email, &u.AboutMe, &u.LastSeen, &u.CreatedAt)
	if err != nil {
		return nil, userNotFound(MapError(err))
	}
	return &u, nil
}

func userNotFound(err error) error {
	if store.IsNotFoundError(err) {
		return store.ErrUserNotFound
	}
	return err
}
