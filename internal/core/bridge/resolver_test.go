package bridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"Skybridge/internal/atproto/bsky"
)

func TestNormalizeHandle(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "bare handle",
			input: "alice.bsky.social",
			want:  "alice.bsky.social",
		},
		{
			name:  "at-prefixed handle",
			input: "@alice.bsky.social",
			want:  "alice.bsky.social",
		},
		{
			name:  "uppercase normalized to lowercase",
			input: "Alice.Bsky.Social",
			want:  "alice.bsky.social",
		},
		{
			name:  "surrounding whitespace trimmed",
			input: "  alice.bsky.social  ",
			want:  "alice.bsky.social",
		},
		{
			name:  "profile URL",
			input: "https://bsky.app/profile/alice.bsky.social",
			want:  "alice.bsky.social",
		},
		{
			name:  "profile URL with trailing path",
			input: "https://bsky.app/profile/alice.bsky.social/post/abc123",
			want:  "alice.bsky.social",
		},
		{
			name:  "www profile URL",
			input: "https://www.bsky.app/profile/bob.example.com",
			want:  "bob.example.com",
		},
		{
			name:  "custom domain handle",
			input: "alice.example.co.uk",
			want:  "alice.example.co.uk",
		},
		{
			name:  "hyphenated segment",
			input: "my-handle.bsky.social",
			want:  "my-handle.bsky.social",
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "whitespace only",
			input:   "   ",
			wantErr: true,
		},
		{
			name:    "missing dot",
			input:   "alice",
			wantErr: true,
		},
		{
			name:    "consecutive hyphens",
			input:   "my--handle.bsky.social",
			wantErr: true,
		},
		{
			name:    "leading hyphen in segment",
			input:   "-alice.bsky.social",
			wantErr: true,
		},
		{
			name:    "trailing hyphen in segment",
			input:   "alice-.bsky.social",
			wantErr: true,
		},
		{
			name:    "invalid characters",
			input:   "alice!.bsky.social",
			wantErr: true,
		},
		{
			name:    "empty segment",
			input:   "alice..social",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeHandle(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidationError(err), "expected a validation error, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves and returns directory profile", func(t *testing.T) {
		dir := new(MockClient)
		dir.On("ResolveHandle", mock.Anything, "alice.bsky.social").
			Return("did:plc:abc123", nil)
		dir.On("GetProfile", mock.Anything, "did:plc:abc123").
			Return(&bsky.Profile{
				DID:         "did:plc:abc123",
				Handle:      "alice.bsky.social",
				DisplayName: "Alice",
			}, nil)

		resolver := NewResolver(dir)
		resolved, err := resolver.Resolve(ctx, "@Alice.bsky.social")

		require.NoError(t, err)
		assert.Equal(t, "did:plc:abc123", resolved.DID)
		assert.Equal(t, "alice.bsky.social", resolved.Handle)
		assert.Equal(t, "Alice", resolved.DisplayName)
		dir.AssertExpectations(t)
	})

	t.Run("invalid input fails without a directory call", func(t *testing.T) {
		dir := new(MockClient)

		resolver := NewResolver(dir)
		_, err := resolver.Resolve(ctx, "not-a-handle")

		require.Error(t, err)
		assert.True(t, IsValidationError(err))
		dir.AssertNotCalled(t, "ResolveHandle", mock.Anything, mock.Anything)
		dir.AssertNotCalled(t, "GetProfile", mock.Anything, mock.Anything)
	})

	t.Run("unknown handle is identity-not-found", func(t *testing.T) {
		dir := new(MockClient)
		dir.On("ResolveHandle", mock.Anything, "ghost.bsky.social").
			Return("", bsky.ErrNotFound)

		resolver := NewResolver(dir)
		_, err := resolver.Resolve(ctx, "ghost.bsky.social")

		require.Error(t, err)
		var nfe *IdentityNotFoundError
		require.ErrorAs(t, err, &nfe)
		assert.Equal(t, "ghost.bsky.social", nfe.Identifier)
	})

	t.Run("unreachable directory is a transport error", func(t *testing.T) {
		dir := new(MockClient)
		dir.On("ResolveHandle", mock.Anything, "alice.bsky.social").
			Return("", bsky.ErrUnavailable)

		resolver := NewResolver(dir)
		_, err := resolver.Resolve(ctx, "alice.bsky.social")

		require.Error(t, err)
		assert.True(t, IsTransportError(err))
	})
}

func TestResolver_VerifyMatch(t *testing.T) {
	ctx := context.Background()

	t.Run("matching handle", func(t *testing.T) {
		dir := new(MockClient)
		dir.On("GetProfile", mock.Anything, "did:plc:abc123").
			Return(&bsky.Profile{DID: "did:plc:abc123", Handle: "alice.bsky.social"}, nil)

		resolver := NewResolver(dir)
		ok, err := resolver.VerifyMatch(ctx, "did:plc:abc123", "alice.bsky.social")

		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("reassigned handle does not match", func(t *testing.T) {
		dir := new(MockClient)
		dir.On("GetProfile", mock.Anything, "did:plc:abc123").
			Return(&bsky.Profile{DID: "did:plc:abc123", Handle: "someone-else.bsky.social"}, nil)

		resolver := NewResolver(dir)
		ok, err := resolver.VerifyMatch(ctx, "did:plc:abc123", "alice.bsky.social")

		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("rejects non-DID input", func(t *testing.T) {
		dir := new(MockClient)

		resolver := NewResolver(dir)
		_, err := resolver.VerifyMatch(ctx, "alice.bsky.social", "alice.bsky.social")

		require.Error(t, err)
		assert.True(t, IsValidationError(err))
		dir.AssertNotCalled(t, "GetProfile", mock.Anything, mock.Anything)
	})
}
