package bridge

import (
	"errors"
	"fmt"

	"Skybridge/internal/crypto/seal"
)

// Sentinel errors surfaced by the repository layer. The storage layer's
// uniqueness constraints are the source of truth for conflict detection;
// these sentinels are how it reports them.
var (
	// ErrIdentityNotLinked is returned when an account has no linked identity.
	ErrIdentityNotLinked = errors.New("account has no linked identity")

	// ErrNotConnected is returned when an identity has no stored credentials.
	ErrNotConnected = errors.New("identity is not connected")

	// ErrIdentityTaken is returned when the external handle or DID is
	// already linked to a different local account.
	ErrIdentityTaken = errors.New("external identity already linked to another account")

	// ErrAlreadyLinked is returned when the local account already has a
	// linked identity.
	ErrAlreadyLinked = errors.New("account already has a linked identity")

	// ErrBroadcastExists is returned on an insert racing an existing
	// broadcast record for the same content.
	ErrBroadcastExists = errors.New("content already broadcast")

	// ErrReplyImported is returned on an insert racing an existing
	// imported reply for the same (content, external URI).
	ErrReplyImported = errors.New("reply already imported")

	// ErrContentNotFound is returned when the content item does not exist.
	ErrContentNotFound = errors.New("content not found")

	// ErrNotBroadcast is returned by sync operations on content that was
	// never broadcast.
	ErrNotBroadcast = errors.New("content has not been broadcast")

	// ErrNoEngagement is returned when no engagement snapshot exists yet
	// for a broadcast.
	ErrNoEngagement = errors.New("no engagement snapshot")

	// ErrForbidden is returned when the requesting account does not own
	// the content.
	ErrForbidden = errors.New("not the content owner")
)

// IsConflict reports whether err is one of the idempotency/uniqueness
// conflicts. These are safe to surface as "already done" rather than as
// failures.
func IsConflict(err error) bool {
	return errors.Is(err, ErrIdentityTaken) ||
		errors.Is(err, ErrAlreadyLinked) ||
		errors.Is(err, ErrBroadcastExists) ||
		errors.Is(err, ErrReplyImported)
}

// ValidationError reports malformed input. It never reaches the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IdentityNotFoundError means the external identity does not exist, as
// opposed to the directory being unreachable.
type IdentityNotFoundError struct {
	Identifier string
}

func (e *IdentityNotFoundError) Error() string {
	return fmt.Sprintf("identity not found: %s", e.Identifier)
}

// AuthError reports a credential problem that requires user action:
// bad credentials at connect time, or an expired/revoked session that
// needs a full reconnect.
type AuthError struct {
	Reason string

	// Reconnect is true when the stored session is beyond refresh and the
	// account owner must link again.
	Reconnect bool
}

func (e *AuthError) Error() string {
	if e.Reconnect {
		return fmt.Sprintf("authentication failed: %s (reconnect required)", e.Reason)
	}
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// IsAuthError reports whether err is an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// TransportError reports an unreachable or failing external service.
// Safe to retry later; the bridge never retries internally.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("external service unavailable during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError reports whether err is a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ConfigurationError reports invalid bridge configuration, such as a
// missing or weak seal secret. Fatal at startup; never a per-call
// failure. The seal cipher is where configuration is actually
// validated, so this aliases its error type.
type ConfigurationError = seal.ConfigError

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// NotEligibleError reports a business-rule gate: group-scoped or anonymous
// content, or content not yet approved by moderation.
type NotEligibleError struct {
	Reason string
}

func (e *NotEligibleError) Error() string {
	return fmt.Sprintf("content not eligible for broadcast: %s", e.Reason)
}

// IsNotEligible reports whether err is a NotEligibleError.
func IsNotEligible(err error) bool {
	var ne *NotEligibleError
	return errors.As(err, &ne)
}

// NotEnabledError reports that the content owner has not enabled the
// requested sync on their linked identity.
type NotEnabledError struct {
	Setting string
}

func (e *NotEnabledError) Error() string {
	return fmt.Sprintf("%s is not enabled for this account", e.Setting)
}

// BroadcastFailedError reports a failed external post creation. The
// caller decides whether to retry.
type BroadcastFailedError struct {
	ContentID int64
	Err       error
}

func (e *BroadcastFailedError) Error() string {
	return fmt.Sprintf("broadcast of content %d failed: %v", e.ContentID, e.Err)
}

func (e *BroadcastFailedError) Unwrap() error { return e.Err }
