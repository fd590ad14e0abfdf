package bridge

import (
	"context"
	"regexp"
	"strings"

	"Skybridge/internal/atproto/bsky"
	"Skybridge/internal/atproto/identity"
)

// AT Protocol handle validation regex
// Handles must: start/end with alphanumeric, contain only alphanumeric + hyphens, no consecutive hyphens
var handleRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?)*$`)

// profileURLPattern matches https://bsky.app/profile/{handle} links, with
// or without a trailing path. Users paste these instead of bare handles.
var profileURLPattern = regexp.MustCompile(`^https?://(?:www\.)?bsky\.app/profile/([^/?#]+)`)

// Resolver validates free-form handle input and resolves it against the
// external directory. Format validation fails fast without a network call.
type Resolver struct {
	dir identity.Directory
}

// NewResolver creates an identity resolver backed by the given directory.
func NewResolver(dir identity.Directory) *Resolver {
	return &Resolver{dir: dir}
}

// NormalizeHandle turns free-form input (bare handle, "@handle", or a
// profile URL) into a validated, normalized handle. Returns a
// ValidationError for anything that fails the handle grammar.
func NormalizeHandle(raw string) (string, error) {
	handle := strings.TrimSpace(raw)
	if handle == "" {
		return "", &ValidationError{Field: "handle", Reason: "handle is required"}
	}

	// Extract the handle segment from pasted profile URLs.
	if matches := profileURLPattern.FindStringSubmatch(handle); matches != nil {
		handle = matches[1]
	}

	handle = strings.TrimPrefix(handle, "@")
	handle = strings.ToLower(strings.TrimSpace(handle))

	// Length validation (1-253 characters per AT Protocol handle syntax)
	if len(handle) < 1 || len(handle) > 253 {
		return "", &ValidationError{Field: "handle", Reason: "must be between 1 and 253 characters"}
	}

	if !strings.Contains(handle, ".") {
		return "", &ValidationError{Field: "handle", Reason: "must contain at least one dot (e.g. alice.bsky.social)"}
	}

	if !handleRegex.MatchString(handle) {
		return "", &ValidationError{Field: "handle", Reason: "must contain only alphanumeric characters, hyphens, and dots; segments must start and end with an alphanumeric character"}
	}

	if strings.Contains(handle, "--") {
		return "", &ValidationError{Field: "handle", Reason: "consecutive hyphens not allowed"}
	}

	return handle, nil
}

// Resolve normalizes raw input and resolves it to a DID plus directory
// profile. A handle that does not exist is an IdentityNotFoundError;
// an unreachable directory is a TransportError, distinct so callers know
// whether to retry.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*ResolvedIdentity, error) {
	handle, err := NormalizeHandle(raw)
	if err != nil {
		return nil, err
	}

	did, err := r.dir.ResolveHandle(ctx, handle)
	if err != nil {
		if bsky.IsNotFound(err) {
			return nil, &IdentityNotFoundError{Identifier: handle}
		}
		return nil, &TransportError{Op: "resolveHandle", Err: err}
	}

	profile, err := r.dir.GetProfile(ctx, did)
	if err != nil {
		if bsky.IsNotFound(err) {
			return nil, &IdentityNotFoundError{Identifier: did}
		}
		return nil, &TransportError{Op: "getProfile", Err: err}
	}

	return &ResolvedIdentity{
		DID:         did,
		Handle:      profile.Handle,
		DisplayName: profile.DisplayName,
	}, nil
}

// VerifyMatch fetches the current profile for a DID and confirms its
// handle still matches the expected one. This guards against a handle
// being reassigned to a different account between resolution and use.
func (r *Resolver) VerifyMatch(ctx context.Context, did, expectedHandle string) (bool, error) {
	if !strings.HasPrefix(did, "did:") {
		return false, &ValidationError{Field: "did", Reason: "must start with 'did:'"}
	}

	profile, err := r.dir.GetProfile(ctx, did)
	if err != nil {
		if bsky.IsNotFound(err) {
			return false, &IdentityNotFoundError{Identifier: did}
		}
		return false, &TransportError{Op: "getProfile", Err: err}
	}

	return strings.EqualFold(profile.Handle, expectedHandle), nil
}
