package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"Skybridge/internal/atproto/bsky"
	"Skybridge/internal/crypto/seal"
)

const (
	// refreshBuffer is the lead time before token expiry at which a
	// proactive refresh is triggered. The buffer exists so a broadcast
	// started just before expiry does not race an expiring token mid-call.
	refreshBuffer = 15 * time.Minute

	// sessionLifetime is the fallback expiry window when the access
	// token's exp claim cannot be parsed. AT Protocol access tokens are
	// short-lived (~2 hours); a conservative assumption is safe because
	// the refresh buffer triggers early anyway.
	sessionLifetime = 2 * time.Hour
)

// CredentialManager owns the credential lifecycle for linked identities:
// Unconnected -> Connected -> (Valid | NeedsRefresh | Expired) ->
// Unconnected on disconnect. It is the only component that sees plaintext
// tokens, and only in memory.
type CredentialManager struct {
	repo   Repository
	client bsky.Client
	cipher *seal.Cipher
	logger *slog.Logger

	// now is injected for tests.
	now func() time.Time
}

// Ensure CredentialManager satisfies the session source used by the
// broadcast and sync engines.
var _ SessionSource = (*CredentialManager)(nil)

// NewCredentialManager creates a credential manager.
func NewCredentialManager(repo Repository, client bsky.Client, cipher *seal.Cipher, logger *slog.Logger) *CredentialManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialManager{
		repo:   repo,
		client: client,
		cipher: cipher,
		logger: logger,
		now:    time.Now,
	}
}

// Connect performs an external login for the account and persists the
// encrypted token pair. Bad credentials surface as an AuthError; an
// unreachable service surfaces as a TransportError so the caller knows
// retrying may help.
func (m *CredentialManager) Connect(ctx context.Context, accountID int64, identifier, secret string) (*bsky.Session, error) {
	session, err := m.client.CreateSession(ctx, identifier, secret)
	if err != nil {
		if bsky.IsAuthError(err) {
			return nil, &AuthError{Reason: "invalid identifier or password"}
		}
		if bsky.IsTransient(err) {
			return nil, &TransportError{Op: "createSession", Err: err}
		}
		return nil, fmt.Errorf("connect account %d: %w", accountID, err)
	}

	token, err := m.sealSession(accountID, session)
	if err != nil {
		return nil, err
	}
	token.ConnectedAt = m.now().UTC()

	if err := m.repo.UpsertCredentials(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to persist credentials for account %d: %w", accountID, err)
	}

	m.logger.Info("bridge identity connected",
		slog.Int64("accountId", accountID),
		slog.String("did", session.DID),
		slog.Time("expiresAt", token.ExpiresAt),
	)

	return session, nil
}

// NeedsRefresh reports whether a token with the given expiry should be
// refreshed: already expired, or expiring within the buffer window.
func (m *CredentialManager) NeedsRefresh(expiresAt time.Time) bool {
	return expiresAt.Sub(m.now()) < refreshBuffer
}

// Refresh exchanges the stored refresh token for a new pair and persists
// it. Refresh tokens are single-use: the old one is revoked upstream on
// success. On any failure the stored state is left untouched and the call
// returns an error; there is no internal retry loop. An expired or
// revoked refresh token yields an AuthError with Reconnect set.
//
// Persisting the rotated pair is deliberately the final step: an external
// refresh success whose write then fails is simply "refresh failed" and
// is retried safely on the next call.
func (m *CredentialManager) Refresh(ctx context.Context, accountID int64) (*CredentialToken, error) {
	cred, err := m.repo.GetCredentials(ctx, accountID)
	if err != nil {
		return nil, err
	}

	refreshJwt, err := m.cipher.Decrypt(cred.RefreshTokenSealed)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal refresh token for account %d: %w", accountID, err)
	}

	session, err := m.client.RefreshSession(ctx, refreshJwt)
	if err != nil {
		if bsky.IsAuthError(err) || errors.Is(err, bsky.ErrBadRequest) {
			return nil, &AuthError{Reason: "refresh token expired or revoked", Reconnect: true}
		}
		if bsky.IsTransient(err) {
			return nil, &TransportError{Op: "refreshSession", Err: err}
		}
		return nil, fmt.Errorf("refresh for account %d: %w", accountID, err)
	}

	token, err := m.sealSession(accountID, session)
	if err != nil {
		return nil, err
	}
	token.ConnectedAt = cred.ConnectedAt

	if err := m.repo.UpsertCredentials(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to persist rotated credentials for account %d: %w", accountID, err)
	}

	m.logger.Info("bridge credentials refreshed",
		slog.Int64("accountId", accountID),
		slog.Time("expiresAt", token.ExpiresAt),
	)

	return token, nil
}

// GetValidSession is the single entry point used by the broadcast and
// sync engines. It refreshes when needed and returns an authenticated
// session; refresh errors propagate unchanged.
func (m *CredentialManager) GetValidSession(ctx context.Context, accountID int64) (*bsky.Session, error) {
	cred, err := m.repo.GetCredentials(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if m.NeedsRefresh(cred.ExpiresAt) {
		cred, err = m.Refresh(ctx, accountID)
		if err != nil {
			return nil, err
		}
	}

	accessJwt, err := m.cipher.Decrypt(cred.AccessTokenSealed)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal access token for account %d: %w", accountID, err)
	}
	refreshJwt, err := m.cipher.Decrypt(cred.RefreshTokenSealed)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal refresh token for account %d: %w", accountID, err)
	}

	ident, err := m.repo.GetIdentity(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &bsky.Session{
		DID:        ident.DID,
		Handle:     ident.Handle,
		AccessJwt:  accessJwt,
		RefreshJwt: refreshJwt,
	}, nil
}

// Disconnect clears the stored token pair and expiry, and force-disables
// the identity's broadcast flags. The linked identity itself survives;
// unlink is a separate operation.
func (m *CredentialManager) Disconnect(ctx context.Context, accountID int64) error {
	if err := m.repo.ClearCredentials(ctx, accountID); err != nil {
		return err
	}
	if err := m.repo.DisableBroadcastFlags(ctx, accountID); err != nil {
		return err
	}

	m.logger.Info("bridge identity disconnected", slog.Int64("accountId", accountID))
	return nil
}

// sealSession encrypts a session's token pair and computes its expiry.
func (m *CredentialManager) sealSession(accountID int64, session *bsky.Session) (*CredentialToken, error) {
	expiresAt := m.now().UTC().Add(sessionLifetime)
	if parsed, err := parseTokenExpiry(session.AccessJwt); err == nil {
		expiresAt = parsed.ExpiresAt.UTC()
	} else {
		m.logger.Debug("access token exp claim unparsable, using default lifetime",
			slog.Int64("accountId", accountID),
			slog.String("error", err.Error()),
		)
	}

	accessSealed, err := m.cipher.Encrypt(session.AccessJwt)
	if err != nil {
		return nil, fmt.Errorf("failed to seal access token for account %d: %w", accountID, err)
	}
	refreshSealed, err := m.cipher.Encrypt(session.RefreshJwt)
	if err != nil {
		return nil, fmt.Errorf("failed to seal refresh token for account %d: %w", accountID, err)
	}

	return &CredentialToken{
		AccountID:          accountID,
		AccessTokenSealed:  accessSealed,
		RefreshTokenSealed: refreshSealed,
		ExpiresAt:          expiresAt,
	}, nil
}
