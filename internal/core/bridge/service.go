// Package bridge implements the federation bridge: linking local accounts
// to external AT Protocol identities, broadcasting approved local content
// through the shared platform identity, and pulling external replies and
// engagement back into local state.
//
// Every operation is a self-contained, synchronous unit of work triggered
// by an external caller (HTTP handler, admin tool, or scheduled sweep);
// the bridge runs no scheduler of its own, and operations are idempotent
// and independently retriable.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"Skybridge/internal/atproto/bsky"
)

// Service is the bridge's public operation surface.
type Service interface {
	// Link resolves and verifies an external identity, logs in with the
	// supplied credentials, and creates the linked identity for the account.
	Link(ctx context.Context, accountID int64, req LinkRequest) (*LinkedIdentity, error)

	// Unlink disconnects credentials and destroys the linked identity.
	Unlink(ctx context.Context, accountID int64) error

	// GetLink reports the account's bridge state without token material.
	GetLink(ctx context.Context, accountID int64) (*LinkStatus, error)

	// UpdateSettings toggles the identity's bridge flags.
	UpdateSettings(ctx context.Context, accountID int64, update SettingsUpdate) (*LinkedIdentity, error)

	// Broadcast publishes a content item through the shared platform
	// identity. Idempotent: an already-broadcast item returns the
	// existing record without an external call.
	Broadcast(ctx context.Context, contentID, requestingAccountID int64) (*BroadcastResult, error)

	// SyncReplies imports external thread replies as local comments.
	SyncReplies(ctx context.Context, contentID int64) (*ReplySyncResult, error)

	// SyncEngagement refreshes the cached engagement counts, subject to
	// the per-content cooldown.
	SyncEngagement(ctx context.Context, contentID int64) (*EngagementSnapshot, error)

	// RefreshSweep refreshes every connected identity nearing expiry.
	RefreshSweep(ctx context.Context) (*SweepResult, error)
}

// LinkRequest carries the user-supplied link input. Identifier is
// free-form handle input; Password is an app password, used once for the
// login call and never stored.
type LinkRequest struct {
	Handle       string  `json:"handle"`
	Password     string  `json:"password"`
	ContactEmail *string `json:"contactEmail,omitempty"`
}

// Config holds the bridge's operational settings.
type Config struct {
	// PlatformAccountID designates the shared broadcaster identity. All
	// outbound broadcasts are published through this account; reply
	// listing uses each content owner's own identity.
	PlatformAccountID int64

	// PublicBaseURL is the local platform's public URL, used for
	// broadcast backlinks (e.g. "https://skybridge.example").
	PublicBaseURL string

	// EngagementCooldown is the minimum interval between successive
	// engagement fetches for the same content. Zero uses the default.
	EngagementCooldown time.Duration
}

const defaultEngagementCooldown = 5 * time.Minute

type bridgeService struct {
	repo       Repository
	content    ContentStore
	moderation ModerationGate
	notifier   Notifier
	resolver   *Resolver
	creds      *CredentialManager
	sessions   SessionSource
	client     bsky.Client
	cfg        Config
	logger     *slog.Logger

	// now is injected for tests.
	now func() time.Time
}

// NewService creates the bridge service. All collaborators are required;
// there is no process-wide singleton, every dependency arrives through
// the constructor.
func NewService(
	repo Repository,
	content ContentStore,
	moderation ModerationGate,
	notifier Notifier,
	resolver *Resolver,
	creds *CredentialManager,
	client bsky.Client,
	cfg Config,
	logger *slog.Logger,
) Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.EngagementCooldown <= 0 {
		cfg.EngagementCooldown = defaultEngagementCooldown
	}
	return &bridgeService{
		repo:       repo,
		content:    content,
		moderation: moderation,
		notifier:   notifier,
		resolver:   resolver,
		creds:      creds,
		sessions:   creds,
		client:     client,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *bridgeService) Link(ctx context.Context, accountID int64, req LinkRequest) (*LinkedIdentity, error) {
	if req.Password == "" {
		return nil, &ValidationError{Field: "password", Reason: "password is required"}
	}

	// Format validation and directory resolution happen before any state
	// change; malformed input never reaches the network.
	resolved, err := s.resolver.Resolve(ctx, req.Handle)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetIdentity(ctx, accountID); err == nil {
		return nil, ErrAlreadyLinked
	} else if !errors.Is(err, ErrIdentityNotLinked) {
		return nil, err
	}

	identity := &LinkedIdentity{
		AccountID:        accountID,
		Handle:           resolved.Handle,
		DID:              resolved.DID,
		LinkedAt:         s.now().UTC(),
		BroadcastEnabled: true,
		EngagementSync:   true,
		ContactEmail:     req.ContactEmail,
	}

	// The storage layer's uniqueness constraints on handle and DID are
	// the final arbiter: a conflicting link attempt fails here with
	// state unchanged.
	if err := s.repo.CreateIdentity(ctx, identity); err != nil {
		return nil, err
	}

	session, err := s.creds.Connect(ctx, accountID, resolved.Handle, req.Password)
	if err != nil {
		// Login failed after the identity row was created; roll the link
		// back so a failed attempt leaves no trace.
		s.rollbackLink(ctx, accountID)
		return nil, err
	}

	// The login proves control of some account; confirm it is the one
	// that was resolved, guarding against handle reassignment between
	// resolution and login.
	if session.DID != resolved.DID {
		s.rollbackLink(ctx, accountID)
		return nil, &AuthError{Reason: fmt.Sprintf("authenticated account %s does not match resolved identity", session.DID)}
	}

	s.logger.Info("account linked to external identity",
		slog.Int64("accountId", accountID),
		slog.String("handle", identity.Handle),
		slog.String("did", identity.DID),
	)

	return identity, nil
}

// rollbackLink undoes a partially-completed link. Best-effort: the
// uniqueness constraints keep a leftover row harmless, but it would block
// the account's next attempt, so try to clean up.
func (s *bridgeService) rollbackLink(ctx context.Context, accountID int64) {
	if err := s.repo.DeleteIdentity(ctx, accountID); err != nil {
		s.logger.Warn("failed to roll back partial link",
			slog.Int64("accountId", accountID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *bridgeService) Unlink(ctx context.Context, accountID int64) error {
	if _, err := s.repo.GetIdentity(ctx, accountID); err != nil {
		return err
	}

	// Disconnect first: clears tokens and force-disables broadcast flags
	// even if the row deletion below fails midway.
	if err := s.creds.Disconnect(ctx, accountID); err != nil {
		return err
	}

	if err := s.repo.DeleteIdentity(ctx, accountID); err != nil {
		return err
	}

	s.logger.Info("account unlinked", slog.Int64("accountId", accountID))
	return nil
}

func (s *bridgeService) GetLink(ctx context.Context, accountID int64) (*LinkStatus, error) {
	identity, err := s.repo.GetIdentity(ctx, accountID)
	if errors.Is(err, ErrIdentityNotLinked) {
		return &LinkStatus{}, nil
	}
	if err != nil {
		return nil, err
	}

	status := &LinkStatus{
		Linked:   true,
		Identity: identity,
	}

	cred, err := s.repo.GetCredentials(ctx, accountID)
	switch {
	case errors.Is(err, ErrNotConnected):
		// Linked but disconnected; nothing more to report.
	case err != nil:
		return nil, err
	default:
		status.Connected = true
		expiresAt := cred.ExpiresAt
		status.ExpiresAt = &expiresAt
	}

	return status, nil
}

func (s *bridgeService) UpdateSettings(ctx context.Context, accountID int64, update SettingsUpdate) (*LinkedIdentity, error) {
	return s.repo.UpdateIdentitySettings(ctx, accountID, update)
}

func (s *bridgeService) RefreshSweep(ctx context.Context) (*SweepResult, error) {
	return s.creds.RefreshSweep(ctx)
}

// notify delivers a best-effort notification after the primary operation
// has committed. Failures are logged and discarded; they never affect the
// primary result.
func (s *bridgeService) notify(ctx context.Context, accountID int64, kind, subject string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, accountID, kind, subject); err != nil {
		s.logger.Warn("notification delivery failed",
			slog.Int64("accountId", accountID),
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}
}
