package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"Skybridge/internal/core/bridge"
)

type postgresModerationGate struct {
	db *sql.DB
}

// NewModerationGate creates the moderation check consulted before broadcast
func NewModerationGate(db *sql.DB) bridge.ModerationGate {
	return &postgresModerationGate{db: db}
}

// IsApproved reports whether moderation has approved the post for
// publication. A missing post is not approved.
func (g *postgresModerationGate) IsApproved(ctx context.Context, contentID int64) (bool, error) {
	query := `SELECT moderation_status = 'approved' FROM posts WHERE id = $1 AND deleted_at IS NULL`

	var approved bool
	err := g.db.QueryRowContext(ctx, query, contentID).Scan(&approved)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check moderation status: %w", err)
	}

	return approved, nil
}
