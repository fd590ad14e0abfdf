package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"Skybridge/internal/atproto/bsky"
)

// Broadcast publishes a content item to the external network through the
// shared platform identity. The steps, each a distinct failure mode:
//
//  1. ownership check (ErrForbidden)
//  2. eligibility: not group-scoped, not anonymous, broadcast not
//     disabled on the author's linked identity, moderation-approved
//     (NotEligibleError)
//  3. idempotency: an existing BroadcastRecord short-circuits with the
//     recorded URI/CID and no external call
//  4. valid session for the platform broadcaster (auth/transport errors
//     propagate)
//  5. payload build: grapheme truncation plus attribution and backlink
//  6. external post creation; failure is a typed BroadcastFailedError and
//     is never retried here — the caller decides
//
// A race between two simultaneous broadcasts of the same content is
// resolved by the storage layer's uniqueness constraint: the loser
// re-reads and returns the winner's record.
func (s *bridgeService) Broadcast(ctx context.Context, contentID, requestingAccountID int64) (*BroadcastResult, error) {
	content, err := s.content.GetContent(ctx, contentID)
	if err != nil {
		return nil, err
	}

	if content.AuthorID != requestingAccountID {
		return nil, ErrForbidden
	}

	// The author's linked identity carries both the broadcast opt-out and
	// the attribution handle. Having no link at all is fine: the shared
	// platform identity still carries the post.
	var authorIdentity *LinkedIdentity
	if identity, err := s.repo.GetIdentity(ctx, content.AuthorID); err == nil {
		authorIdentity = identity
	} else if !errors.Is(err, ErrIdentityNotLinked) {
		return nil, err
	}

	if err := s.checkEligibility(ctx, content, authorIdentity); err != nil {
		return nil, err
	}

	// Idempotency guard: at most one broadcast record exists per content
	// item. A repeat call is an informative no-op.
	if existing, err := s.repo.GetBroadcast(ctx, contentID); err == nil {
		return &BroadcastResult{
			URI:              existing.URI,
			CID:              existing.CID,
			Truncated:        existing.Truncated,
			AlreadyBroadcast: true,
		}, nil
	} else if !errors.Is(err, ErrNotBroadcast) {
		return nil, err
	}

	session, err := s.sessions.GetValidSession(ctx, s.cfg.PlatformAccountID)
	if err != nil {
		// The shared broadcaster itself cannot authenticate; nothing the
		// requesting user can do about it.
		if errors.Is(err, ErrNotConnected) || IsAuthError(err) {
			return nil, &TransportError{Op: "platform session", Err: err}
		}
		return nil, err
	}

	author, err := s.content.GetAuthor(ctx, content.AuthorID)
	if err != nil {
		return nil, err
	}

	// Attribution carries the author's external handle when they have one.
	var externalHandle string
	if authorIdentity != nil {
		externalHandle = authorIdentity.Handle
	}

	payload := buildBroadcastPayload(content, author, externalHandle, s.cfg.PublicBaseURL)

	uri, cid, err := s.broadcastClientPost(ctx, session, payload.Text)
	if err != nil {
		s.notify(ctx, content.AuthorID, NotifyBroadcastFailed, strconv.FormatInt(contentID, 10))
		return nil, &BroadcastFailedError{ContentID: contentID, Err: err}
	}

	record := &BroadcastRecord{
		ContentID:   contentID,
		URI:         uri,
		CID:         cid,
		BroadcastAt: s.now().UTC(),
		Truncated:   payload.Truncated,
		HasMedia:    content.HasMedia,
	}

	if err := s.repo.CreateBroadcast(ctx, record); err != nil {
		if errors.Is(err, ErrBroadcastExists) {
			// Lost a race with a concurrent broadcast: exactly one winner,
			// and this call returns the winner's record.
			winner, getErr := s.repo.GetBroadcast(ctx, contentID)
			if getErr != nil {
				return nil, getErr
			}
			return &BroadcastResult{
				URI:              winner.URI,
				CID:              winner.CID,
				Truncated:        winner.Truncated,
				AlreadyBroadcast: true,
			}, nil
		}
		return nil, fmt.Errorf("failed to persist broadcast record for content %d: %w", contentID, err)
	}

	s.logger.Info("content broadcast",
		slog.Int64("contentId", contentID),
		slog.String("uri", uri),
		slog.Bool("truncated", payload.Truncated),
	)

	s.notify(ctx, content.AuthorID, NotifyBroadcastSucceeded, uri)

	return &BroadcastResult{
		URI:       uri,
		CID:       cid,
		Truncated: payload.Truncated,
	}, nil
}

// checkEligibility applies the business-rule gates: group-scoped and
// anonymous content stay local, the author's opt-out is honored, and
// moderation must have approved. identity is nil when the author has no
// linked identity, which does not block broadcast on its own.
func (s *bridgeService) checkEligibility(ctx context.Context, content *Content, identity *LinkedIdentity) error {
	if content.CommunityID != nil {
		return &NotEligibleError{Reason: "group-scoped content is not broadcast"}
	}
	if content.IsAnonymous {
		return &NotEligibleError{Reason: "anonymous content is not broadcast"}
	}
	if identity != nil && !identity.BroadcastEnabled {
		return &NotEligibleError{Reason: "broadcast is disabled for this account"}
	}

	approved, err := s.moderation.IsApproved(ctx, content.ID)
	if err != nil {
		return fmt.Errorf("moderation check for content %d: %w", content.ID, err)
	}
	if !approved {
		return &NotEligibleError{Reason: "content is not approved by moderation"}
	}

	return nil
}

// broadcastClientPost performs the external post creation through the
// credential manager's protocol client.
func (s *bridgeService) broadcastClientPost(ctx context.Context, session *bsky.Session, text string) (string, string, error) {
	uri, cid, err := s.client.CreatePost(ctx, session, text, nil)
	if err != nil {
		if bsky.IsAuthError(err) {
			return "", "", &AuthError{Reason: "platform session rejected", Reconnect: true}
		}
		if bsky.IsTransient(err) {
			return "", "", &TransportError{Op: "createPost", Err: err}
		}
		return "", "", err
	}
	return uri, cid, nil
}
