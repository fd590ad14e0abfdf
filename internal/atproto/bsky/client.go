// Package bsky provides the AT Protocol client surface used by the
// federation bridge. It wraps indigo's XRPC client so bridge services can
// resolve identities, manage sessions, create posts, and read thread and
// engagement data without knowing protocol details.
//
// Every call is bounded by a timeout, and upstream failures surface as the
// typed errors in errors.go so callers can distinguish "does not exist"
// from "try again later".
package bsky

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	lexutil "github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"
)

const (
	// postCollection is the AT Protocol collection for feed posts.
	postCollection = "app.bsky.feed.post"

	// defaultTimeout bounds every upstream call so a stalled PDS cannot
	// hang the caller indefinitely.
	defaultTimeout = 30 * time.Second

	// threadReplyDepth limits getPostThread traversal. The bridge imports
	// only direct replies to the broadcast post; nested external threads
	// stay external.
	threadReplyDepth = 1
)

// Client is the protocol surface consumed by the bridge services.
type Client interface {
	// ResolveHandle resolves a handle to its DID via the external directory.
	ResolveHandle(ctx context.Context, handle string) (did string, err error)

	// GetProfile fetches the directory profile for a handle or DID.
	GetProfile(ctx context.Context, actor string) (*Profile, error)

	// CreateSession performs a password login and returns a fresh session.
	CreateSession(ctx context.Context, identifier, secret string) (*Session, error)

	// RefreshSession exchanges a refresh token for a new token pair.
	// Refresh tokens are single-use: the old one is revoked on success.
	RefreshSession(ctx context.Context, refreshJwt string) (*Session, error)

	// CreatePost publishes a post in the session owner's repository and
	// returns its AT-URI and CID.
	CreatePost(ctx context.Context, session *Session, text string, langs []string) (uri string, cid string, err error)

	// ListThreadReplies returns the direct replies under a post.
	ListThreadReplies(ctx context.Context, session *Session, postURI string) ([]Reply, error)

	// GetEngagement returns like/repost/reply counts for a post.
	GetEngagement(ctx context.Context, session *Session, postURI string) (*Engagement, error)
}

// xrpcClient implements Client against a single PDS host. App-view reads
// (getPostThread, getPosts, getProfile) are proxied through the PDS.
type xrpcClient struct {
	host       string
	httpClient *http.Client
	timeout    time.Duration
}

// Ensure xrpcClient implements Client.
var _ Client = (*xrpcClient)(nil)

// NewClient creates a protocol client for the given PDS host
// (e.g. "https://bsky.social"). A zero timeout uses the default.
func NewClient(host string, timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &xrpcClient{
		host:       host,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

// anon returns an unauthenticated XRPC client.
func (c *xrpcClient) anon() *xrpc.Client {
	return &xrpc.Client{
		Host:   c.host,
		Client: c.httpClient,
	}
}

// authed returns an XRPC client authenticated with the session tokens.
func (c *xrpcClient) authed(session *Session) *xrpc.Client {
	return &xrpc.Client{
		Host:   c.host,
		Client: c.httpClient,
		Auth: &xrpc.AuthInfo{
			Did:        session.DID,
			Handle:     session.Handle,
			AccessJwt:  session.AccessJwt,
			RefreshJwt: session.RefreshJwt,
		},
	}
}

// wrapError inspects an XRPC error and wraps it with our typed errors so
// callers can use errors.Is() instead of string matching.
func wrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var xrpcErr *xrpc.Error
	if errors.As(err, &xrpcErr) {
		switch {
		case xrpcErr.StatusCode == 400:
			return fmt.Errorf("%s: %w", operation, errors.Join(ErrBadRequest, err))
		case xrpcErr.StatusCode == 401:
			return fmt.Errorf("%s: %w", operation, errors.Join(ErrUnauthorized, err))
		case xrpcErr.StatusCode == 403:
			return fmt.Errorf("%s: %w", operation, errors.Join(ErrForbidden, err))
		case xrpcErr.StatusCode == 404:
			return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
		case xrpcErr.StatusCode == 429:
			return fmt.Errorf("%s: %w", operation, errors.Join(ErrRateLimited, err))
		case xrpcErr.StatusCode >= 500:
			return fmt.Errorf("%s: %w", operation, errors.Join(ErrUnavailable, err))
		}
		return fmt.Errorf("%s failed: %w", operation, err)
	}

	// Not an XRPC-level error: the upstream never answered (DNS, dial,
	// timeout). Safe to retry later.
	return fmt.Errorf("%s: %w", operation, errors.Join(ErrUnavailable, err))
}

func (c *xrpcClient) ResolveHandle(ctx context.Context, handle string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := comatproto.IdentityResolveHandle(ctx, c.anon(), handle)
	if err != nil {
		wrapped := wrapError(err, "resolveHandle")
		// The directory answers an unresolvable handle with 400, not 404.
		// Surface it as not-found so callers can tell "no such identity"
		// apart from "directory unreachable".
		if errors.Is(wrapped, ErrBadRequest) {
			return "", fmt.Errorf("resolveHandle: %q: %w", handle, ErrNotFound)
		}
		return "", wrapped
	}
	if out.Did == "" {
		return "", fmt.Errorf("resolveHandle: empty DID for %q: %w", handle, ErrNotFound)
	}

	return out.Did, nil
}

func (c *xrpcClient) GetProfile(ctx context.Context, actor string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := appbsky.ActorGetProfile(ctx, c.anon(), actor)
	if err != nil {
		wrapped := wrapError(err, "getProfile")
		if errors.Is(wrapped, ErrBadRequest) {
			return nil, fmt.Errorf("getProfile: %q: %w", actor, ErrNotFound)
		}
		return nil, wrapped
	}

	profile := &Profile{
		DID:    out.Did,
		Handle: out.Handle,
	}
	if out.DisplayName != nil {
		profile.DisplayName = *out.DisplayName
	}

	return profile, nil
}

func (c *xrpcClient) CreateSession(ctx context.Context, identifier, secret string) (*Session, error) {
	if identifier == "" {
		return nil, fmt.Errorf("identifier is required")
	}
	if secret == "" {
		return nil, fmt.Errorf("password is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := comatproto.ServerCreateSession(ctx, c.anon(), &comatproto.ServerCreateSession_Input{
		Identifier: identifier,
		Password:   secret,
	})
	if err != nil {
		wrapped := wrapError(err, "createSession")
		// The PDS rejects bad credentials with 400 AuthenticationRequired.
		if errors.Is(wrapped, ErrBadRequest) {
			return nil, fmt.Errorf("createSession: %w", ErrUnauthorized)
		}
		return nil, wrapped
	}
	if out.AccessJwt == "" || out.RefreshJwt == "" {
		return nil, fmt.Errorf("createSession response missing tokens")
	}

	return &Session{
		DID:        out.Did,
		Handle:     out.Handle,
		AccessJwt:  out.AccessJwt,
		RefreshJwt: out.RefreshJwt,
	}, nil
}

func (c *xrpcClient) RefreshSession(ctx context.Context, refreshJwt string) (*Session, error) {
	if refreshJwt == "" {
		return nil, fmt.Errorf("refresh token is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// The refresh endpoint authenticates with the refresh token itself;
	// indigo's XRPC client sends Auth.RefreshJwt for this NSID.
	client := &xrpc.Client{
		Host:   c.host,
		Client: c.httpClient,
		Auth: &xrpc.AuthInfo{
			AccessJwt:  refreshJwt,
			RefreshJwt: refreshJwt,
		},
	}

	out, err := comatproto.ServerRefreshSession(ctx, client)
	if err != nil {
		return nil, wrapError(err, "refreshSession")
	}
	if out.AccessJwt == "" || out.RefreshJwt == "" {
		return nil, fmt.Errorf("refreshSession response missing tokens")
	}

	return &Session{
		DID:        out.Did,
		Handle:     out.Handle,
		AccessJwt:  out.AccessJwt,
		RefreshJwt: out.RefreshJwt,
	}, nil
}

func (c *xrpcClient) CreatePost(ctx context.Context, session *Session, text string, langs []string) (string, string, error) {
	if session == nil {
		return "", "", fmt.Errorf("session is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	post := &appbsky.FeedPost{
		LexiconTypeID: postCollection,
		Text:          text,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	if len(langs) > 0 {
		post.Langs = langs
	}

	out, err := comatproto.RepoCreateRecord(ctx, c.authed(session), &comatproto.RepoCreateRecord_Input{
		Collection: postCollection,
		Repo:       session.DID,
		Record:     &lexutil.LexiconTypeDecoder{Val: post},
	})
	if err != nil {
		return "", "", wrapError(err, "createPost")
	}

	return out.Uri, out.Cid, nil
}

func (c *xrpcClient) ListThreadReplies(ctx context.Context, session *Session, postURI string) ([]Reply, error) {
	if session == nil {
		return nil, fmt.Errorf("session is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := appbsky.FeedGetPostThread(ctx, c.authed(session), threadReplyDepth, 0, postURI)
	if err != nil {
		wrapped := wrapError(err, "getPostThread")
		if errors.Is(wrapped, ErrBadRequest) {
			return nil, fmt.Errorf("getPostThread: %q: %w", postURI, ErrNotFound)
		}
		return nil, wrapped
	}
	if out.Thread == nil || out.Thread.FeedDefs_ThreadViewPost == nil {
		// Deleted or blocked thread root.
		return nil, fmt.Errorf("getPostThread: %q: %w", postURI, ErrNotFound)
	}

	thread := out.Thread.FeedDefs_ThreadViewPost
	replies := make([]Reply, 0, len(thread.Replies))
	for _, elem := range thread.Replies {
		// Union members other than ThreadViewPost are deleted/blocked
		// replies; nothing to import from those.
		if elem == nil || elem.FeedDefs_ThreadViewPost == nil || elem.FeedDefs_ThreadViewPost.Post == nil {
			continue
		}
		replies = append(replies, postViewToReply(elem.FeedDefs_ThreadViewPost.Post))
	}

	return replies, nil
}

func (c *xrpcClient) GetEngagement(ctx context.Context, session *Session, postURI string) (*Engagement, error) {
	if session == nil {
		return nil, fmt.Errorf("session is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := appbsky.FeedGetPosts(ctx, c.authed(session), []string{postURI})
	if err != nil {
		return nil, wrapError(err, "getPosts")
	}
	if len(out.Posts) == 0 {
		return nil, fmt.Errorf("getPosts: %q: %w", postURI, ErrNotFound)
	}

	post := out.Posts[0]
	engagement := &Engagement{}
	if post.LikeCount != nil {
		engagement.Likes = int(*post.LikeCount)
	}
	if post.RepostCount != nil {
		engagement.Reposts = int(*post.RepostCount)
	}
	if post.ReplyCount != nil {
		engagement.Replies = int(*post.ReplyCount)
	}

	return engagement, nil
}

// postViewToReply converts an app.bsky post view into the bridge's Reply.
func postViewToReply(post *appbsky.FeedDefs_PostView) Reply {
	reply := Reply{
		URI: post.Uri,
		CID: post.Cid,
	}

	if post.Author != nil {
		reply.AuthorDID = post.Author.Did
		reply.AuthorHandle = post.Author.Handle
	}

	if post.Record != nil {
		if feedPost, ok := post.Record.Val.(*appbsky.FeedPost); ok {
			reply.Text = feedPost.Text
			if t, err := time.Parse(time.RFC3339, feedPost.CreatedAt); err == nil {
				reply.CreatedAt = t
			}
		}
	}
	if reply.CreatedAt.IsZero() {
		if t, err := time.Parse(time.RFC3339, post.IndexedAt); err == nil {
			reply.CreatedAt = t
		}
	}

	return reply
}
