package bridge

import "time"

// LinkedIdentity ties a local account to an external AT Protocol identity.
// Each local account owns at most one, and the external handle and DID are
// each unique across all local accounts: a link attempt that would violate
// this is rejected with state unchanged.
type LinkedIdentity struct {
	AccountID int64 `json:"accountId" db:"account_id"`

	// Handle is the external human-readable identifier, stored normalized
	// (lowercase, no "@").
	Handle string `json:"handle" db:"handle"`

	// DID is the stable external account ID, independent of handle.
	DID string `json:"did" db:"did"`

	LinkedAt time.Time `json:"linkedAt" db:"linked_at"`

	// BroadcastEnabled gates outbound broadcast for this account's content.
	BroadcastEnabled bool `json:"broadcastEnabled" db:"broadcast_enabled"`

	// AutoBroadcast requests broadcast on publish without an explicit call.
	AutoBroadcast bool `json:"autoBroadcast" db:"auto_broadcast"`

	// EngagementSync gates inbound engagement polling.
	EngagementSync bool `json:"engagementSync" db:"engagement_sync"`

	// ContactEmail is the optional external contact address captured at
	// link time.
	ContactEmail *string `json:"contactEmail,omitempty" db:"contact_email"`
}

// ResolvedIdentity is the outcome of directory resolution for free-form
// handle input.
type ResolvedIdentity struct {
	DID         string `json:"did"`
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
}

// SettingsUpdate carries flag toggles for a linked identity.
// Nil fields mean "don't change".
type SettingsUpdate struct {
	BroadcastEnabled *bool   `json:"broadcastEnabled,omitempty"`
	AutoBroadcast    *bool   `json:"autoBroadcast,omitempty"`
	EngagementSync   *bool   `json:"engagementSync,omitempty"`
	ContactEmail     *string `json:"contactEmail,omitempty"`
}
