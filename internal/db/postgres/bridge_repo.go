package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"Skybridge/internal/core/bridge"
)

type postgresBridgeRepo struct {
	db *sql.DB
}

// NewBridgeRepository creates a new PostgreSQL bridge repository
func NewBridgeRepository(db *sql.DB) bridge.Repository {
	return &postgresBridgeRepo{db: db}
}

// uniqueViolation reports whether err is a unique-constraint violation on
// the named constraint.
func uniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && pqErr.Constraint == constraint
	}
	return false
}

// CreateIdentity inserts a new linked identity row
func (r *postgresBridgeRepo) CreateIdentity(ctx context.Context, identity *bridge.LinkedIdentity) error {
	query := `
		INSERT INTO linked_identities (account_id, handle, did, linked_at, broadcast_enabled, auto_broadcast, engagement_sync, contact_email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		identity.AccountID, identity.Handle, identity.DID, identity.LinkedAt,
		identity.BroadcastEnabled, identity.AutoBroadcast, identity.EngagementSync, identity.ContactEmail)
	if err != nil {
		switch {
		case uniqueViolation(err, "linked_identities_pkey"):
			return bridge.ErrAlreadyLinked
		case uniqueViolation(err, "linked_identities_handle_key"),
			uniqueViolation(err, "linked_identities_did_key"):
			return bridge.ErrIdentityTaken
		}
		return fmt.Errorf("failed to create linked identity: %w", err)
	}

	return nil
}

// GetIdentity retrieves the linked identity for an account
func (r *postgresBridgeRepo) GetIdentity(ctx context.Context, accountID int64) (*bridge.LinkedIdentity, error) {
	query := `
		SELECT account_id, handle, did, linked_at, broadcast_enabled, auto_broadcast, engagement_sync, contact_email
		FROM linked_identities WHERE account_id = $1`

	return r.scanIdentity(r.db.QueryRowContext(ctx, query, accountID))
}

// GetIdentityByHandle retrieves the linked identity owning an external handle
func (r *postgresBridgeRepo) GetIdentityByHandle(ctx context.Context, handle string) (*bridge.LinkedIdentity, error) {
	query := `
		SELECT account_id, handle, did, linked_at, broadcast_enabled, auto_broadcast, engagement_sync, contact_email
		FROM linked_identities WHERE handle = $1`

	return r.scanIdentity(r.db.QueryRowContext(ctx, query, handle))
}

func (r *postgresBridgeRepo) scanIdentity(row *sql.Row) (*bridge.LinkedIdentity, error) {
	identity := &bridge.LinkedIdentity{}
	var contactEmail sql.NullString

	err := row.Scan(&identity.AccountID, &identity.Handle, &identity.DID, &identity.LinkedAt,
		&identity.BroadcastEnabled, &identity.AutoBroadcast, &identity.EngagementSync, &contactEmail)
	if err == sql.ErrNoRows {
		return nil, bridge.ErrIdentityNotLinked
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get linked identity: %w", err)
	}

	if contactEmail.Valid {
		identity.ContactEmail = &contactEmail.String
	}
	return identity, nil
}

// UpdateIdentitySettings updates the identity's bridge flags.
// Nil fields in the update mean "don't change this field".
func (r *postgresBridgeRepo) UpdateIdentitySettings(ctx context.Context, accountID int64, update bridge.SettingsUpdate) (*bridge.LinkedIdentity, error) {
	setClauses := []string{}
	args := []interface{}{}
	argNum := 1

	if update.BroadcastEnabled != nil {
		setClauses = append(setClauses, fmt.Sprintf("broadcast_enabled = $%d", argNum))
		args = append(args, *update.BroadcastEnabled)
		argNum++
	}
	if update.AutoBroadcast != nil {
		setClauses = append(setClauses, fmt.Sprintf("auto_broadcast = $%d", argNum))
		args = append(args, *update.AutoBroadcast)
		argNum++
	}
	if update.EngagementSync != nil {
		setClauses = append(setClauses, fmt.Sprintf("engagement_sync = $%d", argNum))
		args = append(args, *update.EngagementSync)
		argNum++
	}
	if update.ContactEmail != nil {
		setClauses = append(setClauses, fmt.Sprintf("contact_email = $%d", argNum))
		args = append(args, *update.ContactEmail)
		argNum++
	}

	if len(setClauses) == 0 {
		// Nothing to change; return the current row.
		return r.GetIdentity(ctx, accountID)
	}

	args = append(args, accountID)
	query := fmt.Sprintf(`
		UPDATE linked_identities
		SET %s
		WHERE account_id = $%d
		RETURNING account_id, handle, did, linked_at, broadcast_enabled, auto_broadcast, engagement_sync, contact_email`,
		strings.Join(setClauses, ", "), argNum)

	identity := &bridge.LinkedIdentity{}
	var contactEmail sql.NullString
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&identity.AccountID, &identity.Handle, &identity.DID, &identity.LinkedAt,
			&identity.BroadcastEnabled, &identity.AutoBroadcast, &identity.EngagementSync, &contactEmail)
	if err == sql.ErrNoRows {
		return nil, bridge.ErrIdentityNotLinked
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update identity settings: %w", err)
	}

	if contactEmail.Valid {
		identity.ContactEmail = &contactEmail.String
	}
	return identity, nil
}

// DisableBroadcastFlags force-disables broadcast_enabled and auto_broadcast
func (r *postgresBridgeRepo) DisableBroadcastFlags(ctx context.Context, accountID int64) error {
	query := `
		UPDATE linked_identities
		SET broadcast_enabled = false, auto_broadcast = false
		WHERE account_id = $1`

	result, err := r.db.ExecContext(ctx, query, accountID)
	if err != nil {
		return fmt.Errorf("failed to disable broadcast flags: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return bridge.ErrIdentityNotLinked
	}
	return nil
}

// DeleteIdentity removes the linked identity; credentials go with it via
// the FK cascade
func (r *postgresBridgeRepo) DeleteIdentity(ctx context.Context, accountID int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM linked_identities WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete linked identity: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return bridge.ErrIdentityNotLinked
	}
	return nil
}

// ListConnectedAccountIDs returns every account with stored credentials
func (r *postgresBridgeRepo) ListConnectedAccountIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT account_id FROM bridge_credentials ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list connected accounts: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating connected accounts: %w", err)
	}

	return ids, nil
}

// UpsertCredentials stores the sealed token pair, replacing any existing one
func (r *postgresBridgeRepo) UpsertCredentials(ctx context.Context, token *bridge.CredentialToken) error {
	query := `
		INSERT INTO bridge_credentials (account_id, access_token_sealed, refresh_token_sealed, expires_at, connected_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id) DO UPDATE
		SET access_token_sealed = EXCLUDED.access_token_sealed,
		    refresh_token_sealed = EXCLUDED.refresh_token_sealed,
		    expires_at = EXCLUDED.expires_at,
		    connected_at = EXCLUDED.connected_at`

	_, err := r.db.ExecContext(ctx, query,
		token.AccountID, token.AccessTokenSealed, token.RefreshTokenSealed, token.ExpiresAt, token.ConnectedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert credentials: %w", err)
	}
	return nil
}

// GetCredentials retrieves the sealed token pair for an account
func (r *postgresBridgeRepo) GetCredentials(ctx context.Context, accountID int64) (*bridge.CredentialToken, error) {
	query := `
		SELECT account_id, access_token_sealed, refresh_token_sealed, expires_at, connected_at
		FROM bridge_credentials WHERE account_id = $1`

	token := &bridge.CredentialToken{}
	err := r.db.QueryRowContext(ctx, query, accountID).
		Scan(&token.AccountID, &token.AccessTokenSealed, &token.RefreshTokenSealed, &token.ExpiresAt, &token.ConnectedAt)
	if err == sql.ErrNoRows {
		return nil, bridge.ErrNotConnected
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}

	return token, nil
}

// ClearCredentials removes the stored token pair. Clearing an already-clear
// account is a no-op.
func (r *postgresBridgeRepo) ClearCredentials(ctx context.Context, accountID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM bridge_credentials WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

// CreateBroadcast inserts the broadcast record for a content item. The
// primary key on content_id arbitrates concurrent broadcasts.
func (r *postgresBridgeRepo) CreateBroadcast(ctx context.Context, record *bridge.BroadcastRecord) error {
	query := `
		INSERT INTO broadcast_records (content_id, uri, cid, broadcast_at, truncated, has_media)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		record.ContentID, record.URI, record.CID, record.BroadcastAt, record.Truncated, record.HasMedia)
	if err != nil {
		if uniqueViolation(err, "broadcast_records_pkey") {
			return bridge.ErrBroadcastExists
		}
		return fmt.Errorf("failed to create broadcast record: %w", err)
	}
	return nil
}

// GetBroadcast retrieves the broadcast record for a content item
func (r *postgresBridgeRepo) GetBroadcast(ctx context.Context, contentID int64) (*bridge.BroadcastRecord, error) {
	query := `
		SELECT content_id, uri, cid, broadcast_at, truncated, has_media, replies_synced_at
		FROM broadcast_records WHERE content_id = $1`

	record := &bridge.BroadcastRecord{}
	var syncedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, contentID).
		Scan(&record.ContentID, &record.URI, &record.CID, &record.BroadcastAt,
			&record.Truncated, &record.HasMedia, &syncedAt)
	if err == sql.ErrNoRows {
		return nil, bridge.ErrNotBroadcast
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get broadcast record: %w", err)
	}

	if syncedAt.Valid {
		record.RepliesSyncedAt = &syncedAt.Time
	}
	return record, nil
}

// SetRepliesSyncedAt updates the reply-sync watermark
func (r *postgresBridgeRepo) SetRepliesSyncedAt(ctx context.Context, contentID int64, syncedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE broadcast_records SET replies_synced_at = $2 WHERE content_id = $1`, contentID, syncedAt)
	if err != nil {
		return fmt.Errorf("failed to set reply sync watermark: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return bridge.ErrNotBroadcast
	}
	return nil
}

// GetEngagement retrieves the cached engagement snapshot for a content item
func (r *postgresBridgeRepo) GetEngagement(ctx context.Context, contentID int64) (*bridge.EngagementSnapshot, error) {
	query := `
		SELECT content_id, likes, reposts, replies, synced_at
		FROM engagement_snapshots WHERE content_id = $1`

	snapshot := &bridge.EngagementSnapshot{}
	err := r.db.QueryRowContext(ctx, query, contentID).
		Scan(&snapshot.ContentID, &snapshot.Likes, &snapshot.Reposts, &snapshot.Replies, &snapshot.SyncedAt)
	if err == sql.ErrNoRows {
		return nil, bridge.ErrNoEngagement
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get engagement snapshot: %w", err)
	}

	return snapshot, nil
}

// UpsertEngagement overwrites the engagement snapshot wholesale
func (r *postgresBridgeRepo) UpsertEngagement(ctx context.Context, snapshot *bridge.EngagementSnapshot) error {
	query := `
		INSERT INTO engagement_snapshots (content_id, likes, reposts, replies, synced_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (content_id) DO UPDATE
		SET likes = EXCLUDED.likes,
		    reposts = EXCLUDED.reposts,
		    replies = EXCLUDED.replies,
		    synced_at = EXCLUDED.synced_at`

	_, err := r.db.ExecContext(ctx, query,
		snapshot.ContentID, snapshot.Likes, snapshot.Reposts, snapshot.Replies, snapshot.SyncedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert engagement snapshot: %w", err)
	}
	return nil
}

// ListImportedReplyURIs returns the external URIs already imported for a
// content item, as a set
func (r *postgresBridgeRepo) ListImportedReplyURIs(ctx context.Context, contentID int64) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT external_uri FROM imported_replies WHERE content_id = $1`, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list imported replies: %w", err)
	}
	defer rows.Close()

	uris := make(map[string]bool)
	for rows.Next() {
		var uri string
		if err := rows.Scan(&uri); err != nil {
			return nil, fmt.Errorf("failed to scan imported reply uri: %w", err)
		}
		uris[uri] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating imported replies: %w", err)
	}

	return uris, nil
}

// CreateImportedReply records one imported reply. The uniqueness of
// (content_id, external_uri) arbitrates concurrent syncs.
func (r *postgresBridgeRepo) CreateImportedReply(ctx context.Context, reply *bridge.ImportedReply) error {
	query := `
		INSERT INTO imported_replies (content_id, external_uri, external_cid, comment_id, imported_at, author_handle)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		reply.ContentID, reply.ExternalURI, reply.ExternalCID, reply.CommentID, reply.ImportedAt, reply.AuthorHandle)
	if err != nil {
		if uniqueViolation(err, "imported_replies_content_id_external_uri_key") {
			return bridge.ErrReplyImported
		}
		return fmt.Errorf("failed to create imported reply: %w", err)
	}
	return nil
}
