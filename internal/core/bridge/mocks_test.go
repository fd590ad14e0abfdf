package bridge

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"Skybridge/internal/atproto/bsky"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// serviceFixture wires a bridge service over mocks, with the session
// source stubbed so engine tests don't exercise the credential manager.
type serviceFixture struct {
	repo       *MockRepository
	content    *MockContentStore
	moderation *MockModerationGate
	notifier   *MockNotifier
	sessions   *MockSessionSource
	client     *MockClient
	svc        *bridgeService
	now        time.Time
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		repo:       new(MockRepository),
		content:    new(MockContentStore),
		moderation: new(MockModerationGate),
		notifier:   new(MockNotifier),
		sessions:   new(MockSessionSource),
		client:     new(MockClient),
		now:        time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	}
	f.svc = &bridgeService{
		repo:       f.repo,
		content:    f.content,
		moderation: f.moderation,
		notifier:   f.notifier,
		resolver:   NewResolver(f.client),
		sessions:   f.sessions,
		client:     f.client,
		cfg: Config{
			PlatformAccountID:  1,
			PublicBaseURL:      "https://skybridge.example",
			EngagementCooldown: defaultEngagementCooldown,
		},
		logger: discardLogger(),
		now:    func() time.Time { return f.now },
	}
	return f
}

// MockRepository is a mock implementation of Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateIdentity(ctx context.Context, identity *LinkedIdentity) error {
	return m.Called(ctx, identity).Error(0)
}

func (m *MockRepository) GetIdentity(ctx context.Context, accountID int64) (*LinkedIdentity, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*LinkedIdentity), args.Error(1)
}

func (m *MockRepository) GetIdentityByHandle(ctx context.Context, handle string) (*LinkedIdentity, error) {
	args := m.Called(ctx, handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*LinkedIdentity), args.Error(1)
}

func (m *MockRepository) UpdateIdentitySettings(ctx context.Context, accountID int64, update SettingsUpdate) (*LinkedIdentity, error) {
	args := m.Called(ctx, accountID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*LinkedIdentity), args.Error(1)
}

func (m *MockRepository) DisableBroadcastFlags(ctx context.Context, accountID int64) error {
	return m.Called(ctx, accountID).Error(0)
}

func (m *MockRepository) DeleteIdentity(ctx context.Context, accountID int64) error {
	return m.Called(ctx, accountID).Error(0)
}

func (m *MockRepository) ListConnectedAccountIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockRepository) UpsertCredentials(ctx context.Context, token *CredentialToken) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockRepository) GetCredentials(ctx context.Context, accountID int64) (*CredentialToken, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CredentialToken), args.Error(1)
}

func (m *MockRepository) ClearCredentials(ctx context.Context, accountID int64) error {
	return m.Called(ctx, accountID).Error(0)
}

func (m *MockRepository) CreateBroadcast(ctx context.Context, record *BroadcastRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockRepository) GetBroadcast(ctx context.Context, contentID int64) (*BroadcastRecord, error) {
	args := m.Called(ctx, contentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BroadcastRecord), args.Error(1)
}

func (m *MockRepository) SetRepliesSyncedAt(ctx context.Context, contentID int64, syncedAt time.Time) error {
	return m.Called(ctx, contentID, syncedAt).Error(0)
}

func (m *MockRepository) GetEngagement(ctx context.Context, contentID int64) (*EngagementSnapshot, error) {
	args := m.Called(ctx, contentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*EngagementSnapshot), args.Error(1)
}

func (m *MockRepository) UpsertEngagement(ctx context.Context, snapshot *EngagementSnapshot) error {
	return m.Called(ctx, snapshot).Error(0)
}

func (m *MockRepository) ListImportedReplyURIs(ctx context.Context, contentID int64) (map[string]bool, error) {
	args := m.Called(ctx, contentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}

func (m *MockRepository) CreateImportedReply(ctx context.Context, reply *ImportedReply) error {
	return m.Called(ctx, reply).Error(0)
}

// MockContentStore is a mock implementation of ContentStore.
type MockContentStore struct {
	mock.Mock
}

func (m *MockContentStore) GetContent(ctx context.Context, contentID int64) (*Content, error) {
	args := m.Called(ctx, contentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Content), args.Error(1)
}

func (m *MockContentStore) GetAuthor(ctx context.Context, accountID int64) (*Author, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Author), args.Error(1)
}

func (m *MockContentStore) CreateComment(ctx context.Context, comment *ImportedComment) (int64, error) {
	args := m.Called(ctx, comment)
	return args.Get(0).(int64), args.Error(1)
}

// MockModerationGate is a mock implementation of ModerationGate.
type MockModerationGate struct {
	mock.Mock
}

func (m *MockModerationGate) IsApproved(ctx context.Context, contentID int64) (bool, error) {
	args := m.Called(ctx, contentID)
	return args.Bool(0), args.Error(1)
}

// MockNotifier is a mock implementation of Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, accountID int64, kind, subject string) error {
	return m.Called(ctx, accountID, kind, subject).Error(0)
}

// MockSessionSource is a mock implementation of SessionSource.
type MockSessionSource struct {
	mock.Mock
}

func (m *MockSessionSource) GetValidSession(ctx context.Context, accountID int64) (*bsky.Session, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bsky.Session), args.Error(1)
}

// MockClient is a mock implementation of bsky.Client.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) ResolveHandle(ctx context.Context, handle string) (string, error) {
	args := m.Called(ctx, handle)
	return args.String(0), args.Error(1)
}

func (m *MockClient) GetProfile(ctx context.Context, actor string) (*bsky.Profile, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bsky.Profile), args.Error(1)
}

func (m *MockClient) CreateSession(ctx context.Context, identifier, secret string) (*bsky.Session, error) {
	args := m.Called(ctx, identifier, secret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bsky.Session), args.Error(1)
}

func (m *MockClient) RefreshSession(ctx context.Context, refreshJwt string) (*bsky.Session, error) {
	args := m.Called(ctx, refreshJwt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bsky.Session), args.Error(1)
}

func (m *MockClient) CreatePost(ctx context.Context, session *bsky.Session, text string, langs []string) (string, string, error) {
	args := m.Called(ctx, session, text, langs)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockClient) ListThreadReplies(ctx context.Context, session *bsky.Session, postURI string) ([]bsky.Reply, error) {
	args := m.Called(ctx, session, postURI)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]bsky.Reply), args.Error(1)
}

func (m *MockClient) GetEngagement(ctx context.Context, session *bsky.Session, postURI string) (*bsky.Engagement, error) {
	args := m.Called(ctx, session, postURI)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bsky.Engagement), args.Error(1)
}
