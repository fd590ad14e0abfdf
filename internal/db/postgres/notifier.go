package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"Skybridge/internal/core/bridge"
)

type postgresNotifier struct {
	db *sql.DB
}

// NewNotifier creates the notification sink the bridge writes to after an
// operation commits
func NewNotifier(db *sql.DB) bridge.Notifier {
	return &postgresNotifier{db: db}
}

// Notify records one notification row for the account's inbox
func (n *postgresNotifier) Notify(ctx context.Context, accountID int64, kind, subject string) error {
	query := `
		INSERT INTO notifications (account_id, kind, subject, created_at)
		VALUES ($1, $2, $3, NOW())`

	if _, err := n.db.ExecContext(ctx, query, accountID, kind, subject); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}
