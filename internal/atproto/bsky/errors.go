package bsky

import "errors"

// Typed errors for AT Protocol operations.
// These allow services to use errors.Is() for reliable error detection
// instead of fragile string matching.
var (
	// ErrUnauthorized indicates the request failed due to invalid or expired credentials (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the request was rejected due to insufficient permissions (HTTP 403).
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound indicates the requested resource does not exist (HTTP 400/404 XRPC not-found).
	ErrNotFound = errors.New("not found")

	// ErrBadRequest indicates the request was malformed or invalid (HTTP 400).
	ErrBadRequest = errors.New("bad request")

	// ErrRateLimited indicates the upstream service throttled the request (HTTP 429).
	ErrRateLimited = errors.New("rate limited")

	// ErrUnavailable indicates the upstream service could not be reached
	// or answered with a server error. Safe to retry later.
	ErrUnavailable = errors.New("service unavailable")
)

// IsAuthError returns true if the error indicates that re-authentication
// (or a full reconnect by the account owner) might help.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// IsNotFound returns true if the error indicates the subject does not exist,
// as opposed to the upstream being unreachable.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransient returns true for failures that are safe to retry later
// without any user action.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRateLimited)
}
