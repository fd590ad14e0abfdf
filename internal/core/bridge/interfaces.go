package bridge

import (
	"context"
	"time"

	"Skybridge/internal/atproto/bsky"
)

// Repository is the persistence surface for bridge-owned records. The
// storage layer must enforce the uniqueness invariants: handle and DID
// unique across linked identities, one broadcast record per content item,
// one imported reply per (content, external URI). Conflicting writes
// return the matching sentinel from errors.go with state unchanged.
type Repository interface {
	// Linked identities
	CreateIdentity(ctx context.Context, identity *LinkedIdentity) error
	GetIdentity(ctx context.Context, accountID int64) (*LinkedIdentity, error)
	GetIdentityByHandle(ctx context.Context, handle string) (*LinkedIdentity, error)
	UpdateIdentitySettings(ctx context.Context, accountID int64, update SettingsUpdate) (*LinkedIdentity, error)

	// DisableBroadcastFlags force-disables broadcast-enabled and
	// auto-broadcast, used on disconnect and unlink.
	DisableBroadcastFlags(ctx context.Context, accountID int64) error

	// DeleteIdentity removes the linked identity and its credentials.
	DeleteIdentity(ctx context.Context, accountID int64) error

	// ListConnectedAccountIDs returns accounts with stored credentials,
	// for the refresh sweep.
	ListConnectedAccountIDs(ctx context.Context) ([]int64, error)

	// Credentials
	UpsertCredentials(ctx context.Context, token *CredentialToken) error
	GetCredentials(ctx context.Context, accountID int64) (*CredentialToken, error)
	ClearCredentials(ctx context.Context, accountID int64) error

	// Broadcast records
	CreateBroadcast(ctx context.Context, record *BroadcastRecord) error
	GetBroadcast(ctx context.Context, contentID int64) (*BroadcastRecord, error)
	SetRepliesSyncedAt(ctx context.Context, contentID int64, syncedAt time.Time) error

	// Engagement snapshots
	GetEngagement(ctx context.Context, contentID int64) (*EngagementSnapshot, error)
	UpsertEngagement(ctx context.Context, snapshot *EngagementSnapshot) error

	// Imported replies
	ListImportedReplyURIs(ctx context.Context, contentID int64) (map[string]bool, error)
	CreateImportedReply(ctx context.Context, reply *ImportedReply) error
}

// ContentStore is the collaborator surface over the host application's
// content and accounts. The bridge reads content and authors, and creates
// local comments for imported replies; it never creates or deletes content
// or accounts.
type ContentStore interface {
	GetContent(ctx context.Context, contentID int64) (*Content, error)
	GetAuthor(ctx context.Context, accountID int64) (*Author, error)
	CreateComment(ctx context.Context, comment *ImportedComment) (commentID int64, err error)
}

// ModerationGate is the moderation collaborator: a single approval check
// consulted before broadcast.
type ModerationGate interface {
	IsApproved(ctx context.Context, contentID int64) (bool, error)
}

// Notifier is the notification collaborator. Calls are best-effort side
// effects after the primary operation commits: failures are logged and
// discarded, never failing the primary result.
type Notifier interface {
	Notify(ctx context.Context, accountID int64, kind string, subject string) error
}

// Notification kinds emitted by the bridge.
const (
	NotifyBroadcastSucceeded = "bridge.broadcast.succeeded"
	NotifyBroadcastFailed    = "bridge.broadcast.failed"
	NotifyRepliesImported    = "bridge.replies.imported"
)

// SessionSource yields valid sessions for broadcast and sync. Implemented
// by the credential manager; an interface so engine tests can stub it.
type SessionSource interface {
	GetValidSession(ctx context.Context, accountID int64) (*bsky.Session, error)
}
