package domain

import (
	"errors"
	"strconv"
	"time"
)

// PostBodyMaxLength is the maximum length of a post body.
const PostBodyMaxLength = 280

// Common validation errors
var (
	ErrEmptyPostBody   = errors.New("post body cannot be empty")
	ErrPostBodyTooLong = errors.New("post body exceeds maximum length")
	ErrEmptyPostAuthor = errors.New("post must have an author")
)

// PostNamespace is the index namespace for posts.
const PostNamespace = "post"

// Post is a user-authored message. It is the one searchable entity type:
// its body is mirrored into the full-text index at commit time.
type Post struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	UserID    int64     `json:"user_id"`
	Language  string    `json:"language,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewPost creates a new Post for the given author and sets its timestamp.
// Returns an error if validation fails.
func NewPost(userID int64, body string) (*Post, error) {
	post := &Post{
		Body:      body,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
	if err := post.Validate(); err != nil {
		return nil, err
	}
	return post, nil
}

// Validate checks if the Post has valid data.
func (p *Post) Validate() error {
	if p.Body == "" {
		return ErrEmptyPostBody
	}
	if len(p.Body) > PostBodyMaxLength {
		return ErrPostBodyTooLong
	}
	if p.UserID == 0 {
		return ErrEmptyPostAuthor
	}
	return nil
}

// IndexDocument implements the Searchable capability. Only the body is
// declared searchable.
func (p *Post) IndexDocument() IndexDocument {
	return IndexDocument{
		Namespace: PostNamespace,
		ID:        p.ID,
		Fields: map[string]string{
			"body": p.Body,
		},
	}
}

// String implements fmt.Stringer for logging.
func (p *Post) String() string {
	return "<Post " + strconv.FormatInt(p.ID, 10) + ">"
}
