package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"Skybridge/internal/atproto/bsky"
)

// withCredentials attaches a real credential manager, backed by the
// fixture's mocks, for the link/unlink flows.
func withCredentials(t *testing.T, f *serviceFixture) {
	t.Helper()
	creds := NewCredentialManager(f.repo, f.client, newTestCipher(t), discardLogger())
	creds.now = func() time.Time { return f.now }
	f.svc.creds = creds
}

func TestService_Link(t *testing.T) {
	ctx := context.Background()

	resolveAlice := func(f *serviceFixture) {
		f.client.On("ResolveHandle", mock.Anything, "alice.bsky.social").
			Return("did:plc:alice", nil)
		f.client.On("GetProfile", mock.Anything, "did:plc:alice").
			Return(&bsky.Profile{DID: "did:plc:alice", Handle: "alice.bsky.social", DisplayName: "Alice"}, nil)
	}

	t.Run("links, verifies, and connects", func(t *testing.T) {
		f := newServiceFixture()
		withCredentials(t, f)
		resolveAlice(f)

		f.repo.On("GetIdentity", mock.Anything, int64(7)).Return(nil, ErrIdentityNotLinked)

		var created *LinkedIdentity
		f.repo.On("CreateIdentity", mock.Anything, mock.AnythingOfType("*bridge.LinkedIdentity")).
			Run(func(args mock.Arguments) {
				created = args.Get(1).(*LinkedIdentity)
			}).
			Return(nil)
		f.client.On("CreateSession", mock.Anything, "alice.bsky.social", "app-password").
			Return(&bsky.Session{DID: "did:plc:alice", Handle: "alice.bsky.social", AccessJwt: "access", RefreshJwt: "refresh"}, nil)
		f.repo.On("UpsertCredentials", mock.Anything, mock.AnythingOfType("*bridge.CredentialToken")).Return(nil)

		identity, err := f.svc.Link(ctx, 7, LinkRequest{Handle: "@Alice.bsky.social", Password: "app-password"})
		require.NoError(t, err)
		assert.Equal(t, "alice.bsky.social", identity.Handle)
		assert.Equal(t, "did:plc:alice", identity.DID)

		require.NotNil(t, created)
		assert.Equal(t, int64(7), created.AccountID)
		assert.True(t, created.BroadcastEnabled, "broadcast defaults on")
		assert.True(t, created.EngagementSync, "engagement sync defaults on")
		assert.False(t, created.AutoBroadcast, "auto-broadcast defaults off")
		f.repo.AssertNotCalled(t, "DeleteIdentity", mock.Anything, mock.Anything)
	})

	t.Run("missing password fails before any resolution", func(t *testing.T) {
		f := newServiceFixture()
		withCredentials(t, f)

		_, err := f.svc.Link(ctx, 7, LinkRequest{Handle: "alice.bsky.social"})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
		f.client.AssertNotCalled(t, "ResolveHandle", mock.Anything, mock.Anything)
	})

	t.Run("malformed handle never reaches the network", func(t *testing.T) {
		f := newServiceFixture()
		withCredentials(t, f)

		_, err := f.svc.Link(ctx, 7, LinkRequest{Handle: "nodots", Password: "pw"})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
		f.client.AssertNotCalled(t, "ResolveHandle", mock.Anything, mock.Anything)
	})

	t.Run("an already-linked account cannot link again", func(t *testing.T) {
		f := newServiceFixture()
		withCredentials(t, f)
		resolveAlice(f)

		f.repo.On("GetIdentity", mock.Anything, int64(7)).
			Return(&LinkedIdentity{AccountID: 7, Handle: "old.bsky.social"}, nil)

		_, err := f.svc.Link(ctx, 7, LinkRequest{Handle: "alice.bsky.social", Password: "pw"})
		assert.ErrorIs(t, err, ErrAlreadyLinked)
		f.repo.AssertNotCalled(t, "CreateIdentity", mock.Anything, mock.Anything)
	})

	t.Run("a taken handle conflicts with state unchanged", func(t *testing.T) {
		f := newServiceFixture()
		withCredentials(t, f)
		resolveAlice(f)

		f.repo.On("GetIdentity", mock.Anything, int64(7)).Return(nil, ErrIdentityNotLinked)
		f.repo.On("CreateIdentity", mock.Anything, mock.Anything).Return(ErrIdentityTaken)

		_, err := f.svc.Link(ctx, 7, LinkRequest{Handle: "alice.bsky.social", Password: "pw"})
		assert.ErrorIs(t, err, ErrIdentityTaken)
		assert.True(t, IsConflict(err))
		f.client.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("failed login rolls the link back", func(t *testing.T) {
		f := newServiceFixture()
		withCredentials(t, f)
		resolveAlice(f)

		f.repo.On("GetIdentity", mock.Anything, int64(7)).Return(nil, ErrIdentityNotLinked)
		f.repo.On("CreateIdentity", mock.Anything, mock.Anything).Return(nil)
		f.client.On("CreateSession", mock.Anything, "alice.bsky.social", "wrong").
			Return(nil, bsky.ErrUnauthorized)
		f.repo.On("DeleteIdentity", mock.Anything, int64(7)).Return(nil)

		_, err := f.svc.Link(ctx, 7, LinkRequest{Handle: "alice.bsky.social", Password: "wrong"})
		require.Error(t, err)
		assert.True(t, IsAuthError(err))
		f.repo.AssertCalled(t, "DeleteIdentity", mock.Anything, int64(7))
	})

	t.Run("a reassigned handle rolls the link back", func(t *testing.T) {
		f := newServiceFixture()
		withCredentials(t, f)
		resolveAlice(f)

		f.repo.On("GetIdentity", mock.Anything, int64(7)).Return(nil, ErrIdentityNotLinked)
		f.repo.On("CreateIdentity", mock.Anything, mock.Anything).Return(nil)

		// The login succeeds but proves control of a different account than
		// the one the handle resolved to.
		f.client.On("CreateSession", mock.Anything, "alice.bsky.social", "pw").
			Return(&bsky.Session{DID: "did:plc:other", AccessJwt: "access", RefreshJwt: "refresh"}, nil)
		f.repo.On("UpsertCredentials", mock.Anything, mock.Anything).Return(nil)
		f.repo.On("DeleteIdentity", mock.Anything, int64(7)).Return(nil)

		_, err := f.svc.Link(ctx, 7, LinkRequest{Handle: "alice.bsky.social", Password: "pw"})
		require.Error(t, err)
		assert.True(t, IsAuthError(err))
		f.repo.AssertCalled(t, "DeleteIdentity", mock.Anything, int64(7))
	})

	t.Run("unknown handle is identity-not-found", func(t *testing.T) {
		f := newServiceFixture()
		withCredentials(t, f)

		f.client.On("ResolveHandle", mock.Anything, "ghost.bsky.social").
			Return("", bsky.ErrNotFound)

		_, err := f.svc.Link(ctx, 7, LinkRequest{Handle: "ghost.bsky.social", Password: "pw"})
		require.Error(t, err)
		var nfe *IdentityNotFoundError
		assert.ErrorAs(t, err, &nfe)
	})
}

func TestService_Unlink(t *testing.T) {
	ctx := context.Background()

	t.Run("disconnects and destroys the identity", func(t *testing.T) {
		f := newServiceFixture()
		withCredentials(t, f)

		f.repo.On("GetIdentity", mock.Anything, int64(7)).
			Return(&LinkedIdentity{AccountID: 7, Handle: "alice.bsky.social"}, nil)
		f.repo.On("ClearCredentials", mock.Anything, int64(7)).Return(nil)
		f.repo.On("DisableBroadcastFlags", mock.Anything, int64(7)).Return(nil)
		f.repo.On("DeleteIdentity", mock.Anything, int64(7)).Return(nil)

		require.NoError(t, f.svc.Unlink(ctx, 7))
		f.repo.AssertExpectations(t)
	})

	t.Run("unlinked account propagates the sentinel", func(t *testing.T) {
		f := newServiceFixture()
		withCredentials(t, f)

		f.repo.On("GetIdentity", mock.Anything, int64(7)).Return(nil, ErrIdentityNotLinked)

		err := f.svc.Unlink(ctx, 7)
		assert.ErrorIs(t, err, ErrIdentityNotLinked)
	})
}

func TestService_GetLink(t *testing.T) {
	ctx := context.Background()

	t.Run("unlinked account reports empty status", func(t *testing.T) {
		f := newServiceFixture()
		f.repo.On("GetIdentity", mock.Anything, int64(7)).Return(nil, ErrIdentityNotLinked)

		status, err := f.svc.GetLink(ctx, 7)
		require.NoError(t, err)
		assert.False(t, status.Linked)
		assert.False(t, status.Connected)
		assert.Nil(t, status.Identity)
	})

	t.Run("linked and connected reports expiry without token material", func(t *testing.T) {
		f := newServiceFixture()
		identity := &LinkedIdentity{AccountID: 7, Handle: "alice.bsky.social", DID: "did:plc:alice"}
		expiresAt := f.now.Add(time.Hour)

		f.repo.On("GetIdentity", mock.Anything, int64(7)).Return(identity, nil)
		f.repo.On("GetCredentials", mock.Anything, int64(7)).
			Return(&CredentialToken{AccountID: 7, AccessTokenSealed: "sealed", RefreshTokenSealed: "sealed", ExpiresAt: expiresAt}, nil)

		status, err := f.svc.GetLink(ctx, 7)
		require.NoError(t, err)
		assert.True(t, status.Linked)
		assert.True(t, status.Connected)
		assert.Equal(t, identity, status.Identity)
		require.NotNil(t, status.ExpiresAt)
		assert.True(t, status.ExpiresAt.Equal(expiresAt))
	})

	t.Run("linked but disconnected", func(t *testing.T) {
		f := newServiceFixture()
		identity := &LinkedIdentity{AccountID: 7, Handle: "alice.bsky.social"}

		f.repo.On("GetIdentity", mock.Anything, int64(7)).Return(identity, nil)
		f.repo.On("GetCredentials", mock.Anything, int64(7)).Return(nil, ErrNotConnected)

		status, err := f.svc.GetLink(ctx, 7)
		require.NoError(t, err)
		assert.True(t, status.Linked)
		assert.False(t, status.Connected)
		assert.Nil(t, status.ExpiresAt)
	})
}

func TestService_UpdateSettings(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture()

	enabled := false
	update := SettingsUpdate{BroadcastEnabled: &enabled}
	updated := &LinkedIdentity{AccountID: 7, Handle: "alice.bsky.social", BroadcastEnabled: false}

	f.repo.On("UpdateIdentitySettings", mock.Anything, int64(7), update).Return(updated, nil)

	got, err := f.svc.UpdateSettings(ctx, 7, update)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}
