package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"Skybridge/internal/core/bridge"
)

type postgresContentStore struct {
	db *sql.DB
}

// NewContentStore creates the bridge's view over the host platform's posts
// and accounts
func NewContentStore(db *sql.DB) bridge.ContentStore {
	return &postgresContentStore{db: db}
}

// GetContent retrieves one post for broadcast or sync
func (s *postgresContentStore) GetContent(ctx context.Context, contentID int64) (*bridge.Content, error) {
	query := `
		SELECT id, author_id, community_id, is_anonymous, title, body, has_media, created_at
		FROM posts WHERE id = $1 AND deleted_at IS NULL`

	content := &bridge.Content{}
	var communityID sql.NullInt64
	var title, body sql.NullString
	err := s.db.QueryRowContext(ctx, query, contentID).
		Scan(&content.ID, &content.AuthorID, &communityID, &content.IsAnonymous,
			&title, &body, &content.HasMedia, &content.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, bridge.ErrContentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content: %w", err)
	}

	if communityID.Valid {
		content.CommunityID = &communityID.Int64
	}
	content.Title = title.String
	content.Body = body.String

	return content, nil
}

// GetAuthor retrieves the local account behind a post, for attribution
func (s *postgresContentStore) GetAuthor(ctx context.Context, accountID int64) (*bridge.Author, error) {
	query := `SELECT id, username, display_name FROM users WHERE id = $1`

	author := &bridge.Author{}
	var displayName sql.NullString
	err := s.db.QueryRowContext(ctx, query, accountID).
		Scan(&author.ID, &author.Username, &displayName)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("author %d not found", accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get author: %w", err)
	}

	author.DisplayName = displayName.String
	return author, nil
}

// CreateComment materializes an imported external reply as a local comment
func (s *postgresContentStore) CreateComment(ctx context.Context, comment *bridge.ImportedComment) (int64, error) {
	query := `
		INSERT INTO comments (post_id, author_id, body, external_handle, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		RETURNING id`

	var commentID int64
	err := s.db.QueryRowContext(ctx, query,
		comment.ContentID, comment.AuthorID, comment.Body, comment.ExternalHandle, comment.CreatedAt).
		Scan(&commentID)
	if err != nil {
		return 0, fmt.Errorf("failed to create comment: %w", err)
	}

	return commentID, nil
}
