package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"Skybridge/internal/atproto/bsky"
)

// SyncReplies pulls external thread replies under a broadcast and
// materializes new ones as local comments. Requires an existing broadcast
// record. Reply listing is scoped per-thread-owner, so the session comes
// from the content owner's own linked identity, not the shared
// broadcaster.
//
// Dedup: a reply whose external URI is already imported for this content
// is counted as skipped, never imported twice. Repeated full syncs are
// safe. The broadcast's replies-synced watermark is updated once, after
// the loop, regardless of per-reply outcomes.
func (s *bridgeService) SyncReplies(ctx context.Context, contentID int64) (*ReplySyncResult, error) {
	record, err := s.repo.GetBroadcast(ctx, contentID)
	if err != nil {
		return nil, err
	}

	content, err := s.content.GetContent(ctx, contentID)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetValidSession(ctx, content.AuthorID)
	if err != nil {
		return nil, err
	}

	replies, err := s.client.ListThreadReplies(ctx, session, record.URI)
	if err != nil {
		if bsky.IsAuthError(err) {
			return nil, &AuthError{Reason: "session rejected while listing replies", Reconnect: true}
		}
		return nil, &TransportError{Op: "listThreadReplies", Err: err}
	}

	imported, err := s.repo.ListImportedReplyURIs(ctx, contentID)
	if err != nil {
		return nil, err
	}

	result := &ReplySyncResult{Total: len(replies)}
	for _, reply := range replies {
		if imported[reply.URI] {
			result.Skipped++
			continue
		}

		if err := s.importReply(ctx, content, reply); err != nil {
			if errors.Is(err, ErrReplyImported) {
				// Lost a race with a concurrent sync; the reply exists.
				result.Skipped++
				continue
			}
			// Per-reply failures don't abort the pass; the next sync
			// picks the reply up again.
			s.logger.Warn("failed to import reply",
				slog.Int64("contentId", contentID),
				slog.String("uri", reply.URI),
				slog.String("error", err.Error()),
			)
			continue
		}
		result.Imported++
	}

	if err := s.repo.SetRepliesSyncedAt(ctx, contentID, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to update reply sync watermark for content %d: %w", contentID, err)
	}

	if result.Imported > 0 {
		s.notify(ctx, content.AuthorID, NotifyRepliesImported, strconv.Itoa(result.Imported))
	}

	s.logger.Info("reply sync completed",
		slog.Int64("contentId", contentID),
		slog.Int("imported", result.Imported),
		slog.Int("skipped", result.Skipped),
		slog.Int("total", result.Total),
	)

	return result, nil
}

// importReply creates the local comment for one external reply and
// records the import. Attribution goes to the external author's local
// account when their handle matches a linked identity, otherwise to the
// content owner; the external handle is preserved for display either way.
func (s *bridgeService) importReply(ctx context.Context, content *Content, reply bsky.Reply) error {
	authorID := content.AuthorID
	if reply.AuthorHandle != "" {
		if identity, err := s.repo.GetIdentityByHandle(ctx, reply.AuthorHandle); err == nil {
			authorID = identity.AccountID
		} else if !errors.Is(err, ErrIdentityNotLinked) {
			return err
		}
	}

	commentID, err := s.content.CreateComment(ctx, &ImportedComment{
		ContentID:      content.ID,
		AuthorID:       authorID,
		Body:           reply.Text,
		CreatedAt:      reply.CreatedAt,
		ExternalHandle: reply.AuthorHandle,
	})
	if err != nil {
		return fmt.Errorf("failed to create comment for reply %s: %w", reply.URI, err)
	}

	return s.repo.CreateImportedReply(ctx, &ImportedReply{
		ContentID:    content.ID,
		ExternalURI:  reply.URI,
		ExternalCID:  reply.CID,
		CommentID:    commentID,
		ImportedAt:   s.now().UTC(),
		AuthorHandle: reply.AuthorHandle,
	})
}

// SyncEngagement refreshes the cached engagement counts for a broadcast.
// Requires the content owner to have engagement sync enabled. Inside the
// cooldown window the cached snapshot is returned with no external call.
// A fetch failure leaves the prior snapshot intact and returns it
// alongside the error rather than corrupting state.
func (s *bridgeService) SyncEngagement(ctx context.Context, contentID int64) (*EngagementSnapshot, error) {
	record, err := s.repo.GetBroadcast(ctx, contentID)
	if err != nil {
		return nil, err
	}

	content, err := s.content.GetContent(ctx, contentID)
	if err != nil {
		return nil, err
	}

	identity, err := s.repo.GetIdentity(ctx, content.AuthorID)
	if err != nil {
		return nil, err
	}
	if !identity.EngagementSync {
		return nil, &NotEnabledError{Setting: "engagement sync"}
	}

	prior, err := s.repo.GetEngagement(ctx, contentID)
	if err != nil && !errors.Is(err, ErrNoEngagement) {
		return nil, err
	}

	// Rate limit: within the cooldown the cached snapshot is authoritative.
	if prior != nil && s.now().Sub(prior.SyncedAt) < s.cfg.EngagementCooldown {
		return prior, nil
	}

	session, err := s.sessions.GetValidSession(ctx, content.AuthorID)
	if err != nil {
		return prior, err
	}

	counts, err := s.client.GetEngagement(ctx, session, record.URI)
	if err != nil {
		if bsky.IsAuthError(err) {
			return prior, &AuthError{Reason: "session rejected while fetching engagement", Reconnect: true}
		}
		return prior, &TransportError{Op: "getEngagement", Err: err}
	}

	snapshot := &EngagementSnapshot{
		ContentID: contentID,
		Likes:     counts.Likes,
		Reposts:   counts.Reposts,
		Replies:   counts.Replies,
		SyncedAt:  s.now().UTC(),
	}

	if err := s.repo.UpsertEngagement(ctx, snapshot); err != nil {
		return prior, fmt.Errorf("failed to persist engagement snapshot for content %d: %w", contentID, err)
	}

	return snapshot, nil
}
