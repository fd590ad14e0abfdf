package bridge

import "time"

// CredentialToken holds the encrypted session tokens for one linked
// identity (or for the shared platform broadcaster). Plaintext tokens
// never persist and never appear in logs.
type CredentialToken struct {
	AccountID int64 `json:"accountId" db:"account_id"`

	// AccessTokenSealed and RefreshTokenSealed are seal-cipher outputs.
	AccessTokenSealed  string `json:"-" db:"access_token_sealed"`
	RefreshTokenSealed string `json:"-" db:"refresh_token_sealed"`

	ExpiresAt   time.Time `json:"expiresAt" db:"expires_at"`
	ConnectedAt time.Time `json:"connectedAt" db:"connected_at"`
}

// BroadcastRecord marks a content item as broadcast. At most one exists
// per content item; its presence is the idempotency guard. Created once on
// first successful broadcast, never mutated (except the reply-sync
// watermark), never deleted by the bridge.
type BroadcastRecord struct {
	ContentID   int64     `json:"contentId" db:"content_id"`
	URI         string    `json:"uri" db:"uri"`
	CID         string    `json:"cid" db:"cid"`
	BroadcastAt time.Time `json:"broadcastAt" db:"broadcast_at"`
	Truncated   bool      `json:"truncated" db:"truncated"`
	HasMedia    bool      `json:"hasMedia" db:"has_media"`

	// RepliesSyncedAt is the reply-sync watermark, updated once per sync
	// pass after the import loop completes.
	RepliesSyncedAt *time.Time `json:"repliesSyncedAt,omitempty" db:"replies_synced_at"`
}

// EngagementSnapshot caches external engagement counts for one broadcast.
// Overwritten wholesale on every sync; no merge.
type EngagementSnapshot struct {
	ContentID int64     `json:"contentId" db:"content_id"`
	Likes     int       `json:"likes" db:"likes"`
	Reposts   int       `json:"reposts" db:"reposts"`
	Replies   int       `json:"replies" db:"replies"`
	SyncedAt  time.Time `json:"syncedAt" db:"synced_at"`
}

// ImportedReply records one external reply materialized as a local
// comment. The (content, external URI) pair is unique; that uniqueness is
// the dedup guard. Never updated by resync.
type ImportedReply struct {
	ContentID   int64     `json:"contentId" db:"content_id"`
	ExternalURI string    `json:"externalUri" db:"external_uri"`
	ExternalCID string    `json:"externalCid" db:"external_cid"`
	CommentID   int64     `json:"commentId" db:"comment_id"`
	ImportedAt  time.Time `json:"importedAt" db:"imported_at"`

	// AuthorHandle is the external author's handle, always retained for
	// display even when the author also resolved to a local account.
	AuthorHandle string `json:"authorHandle" db:"author_handle"`
}

// Content is the collaborator view of a local content item. The bridge
// reads these; it never creates or deletes them.
type Content struct {
	ID          int64
	AuthorID    int64
	CommunityID *int64 // non-nil means group-scoped, not broadcastable
	IsAnonymous bool
	Title       string
	Body        string
	HasMedia    bool
	CreatedAt   time.Time
}

// Author is the collaborator view of a local account for attribution.
type Author struct {
	ID          int64
	Username    string
	DisplayName string
}

// ImportedComment is the local comment the bridge asks the collaborator
// to create for an external reply.
type ImportedComment struct {
	ContentID int64

	// AuthorID is the matched local account, or the content owner when
	// the external author has no local link.
	AuthorID int64

	Body      string
	CreatedAt time.Time

	// ExternalHandle is preserved for display regardless of attribution.
	ExternalHandle string
}

// BroadcastResult is the outcome of a broadcast call. AlreadyBroadcast is
// set when the call was an idempotent no-op returning the existing record.
type BroadcastResult struct {
	URI              string `json:"uri"`
	CID              string `json:"cid"`
	Truncated        bool   `json:"truncated"`
	AlreadyBroadcast bool   `json:"alreadyBroadcast"`
}

// ReplySyncResult summarizes one reply-sync pass.
type ReplySyncResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Total    int `json:"total"`
}

// SweepResult aggregates a refresh sweep. One identity's failure never
// aborts the sweep; it is counted here instead.
type SweepResult struct {
	Refreshed int `json:"refreshed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// LinkStatus is the read view of an account's bridge state. It never
// carries token material.
type LinkStatus struct {
	Linked    bool            `json:"linked"`
	Connected bool            `json:"connected"`
	Identity  *LinkedIdentity `json:"identity,omitempty"`
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
}
