package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zawj-chat/internal/backend"
	"zawj-chat/internal/connection"
	"zawj-chat/internal/models"
	"zawj-chat/internal/realtime"
	"zawj-chat/internal/repositories"
	"zawj-chat/internal/repositories/memory"
	"zawj-chat/pkg/logger"
)

const testSecret = "test-secret"

type fixture struct {
	db            *memory.DB
	store         repositories.Store
	backend       *backend.Backend
	users         *UserService
	conversations *ConversationService
	connections   *ConnectionService
	blocks        *BlockService
	reports       *ReportService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memory.New()
	store := db.Store()
	bus := realtime.NewMemoryBus()
	t.Cleanup(func() { bus.Close() })
	log := logger.NewNop()
	be := backend.New(store, bus, log)
	return &fixture{
		db:            db,
		store:         store,
		backend:       be,
		users:         NewUserService(store.Users, testSecret, time.Hour, log),
		conversations: NewConversationService(store, time.UTC, log),
		connections:   NewConnectionService(be, store, log),
		blocks:        NewBlockService(be, store.Users, log),
		reports:       NewReportService(store.Reports, store.Users, log),
	}
}

func (f *fixture) register(t *testing.T, username string) string {
	t.Helper()
	resp, err := f.users.Register(context.Background(), &models.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	return resp.ID
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.register(t, "amina")

	_, err := f.users.Register(ctx, &models.RegisterRequest{
		Username: "other",
		Email:    "AMINA@example.com",
		Password: "password123",
	})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	login, err := f.users.Login(ctx, &models.LoginRequest{Email: "amina@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, id, login.User.ID)

	token, err := jwt.Parse(login.Token, func(tok *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, id, claims["user_id"])

	_, err = f.users.Login(ctx, &models.LoginRequest{Email: "amina@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.users.Login(ctx, &models.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.users.Register(context.Background(), &models.RegisterRequest{Email: "x@example.com"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.register(t, "yusuf")

	first := "  Yusuf "
	resp, err := f.users.UpdateProfile(ctx, id, &models.UpdateProfileRequest{FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, "Yusuf", resp.DisplayName)

	_, err = f.users.GetProfile(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)

	ok, err := f.users.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.users.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConversationCreateOrGetIsPerPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.register(t, "a"), f.register(t, "b")

	first, err := f.conversations.CreateOrGet(ctx, a, b)
	require.NoError(t, err)
	second, err := f.conversations.CreateOrGet(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = f.conversations.CreateOrGet(ctx, a, a)
	assert.ErrorIs(t, err, ErrSelfAction)
	_, err = f.conversations.CreateOrGet(ctx, a, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestConversationHistoryRequiresParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := f.register(t, "a"), f.register(t, "b"), f.register(t, "c")
	conv, err := f.conversations.CreateOrGet(ctx, a, b)
	require.NoError(t, err)

	day := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, f.store.Messages.Create(ctx, &models.Message{ConversationID: conv.ID, SenderID: b, Text: "later", CreatedAt: day.Add(26 * time.Hour)}))
	require.NoError(t, f.store.Messages.Create(ctx, &models.Message{ConversationID: conv.ID, SenderID: a, Text: "first", CreatedAt: day}))

	hist, err := f.conversations.History(ctx, a, conv.ID)
	require.NoError(t, err)
	require.Len(t, hist.Messages, 2)
	assert.Equal(t, "first", hist.Messages[0].Text)
	require.Len(t, hist.Rows, 4)
	assert.Equal(t, "Mar 1, 2024", hist.Rows[0].Header)

	_, err = f.conversations.History(ctx, c, conv.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = f.conversations.History(ctx, a, "missing")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestConversationHistoryEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.register(t, "a"), f.register(t, "b")
	conv, err := f.conversations.CreateOrGet(ctx, a, b)
	require.NoError(t, err)

	hist, err := f.conversations.History(ctx, a, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, hist.Messages)
	assert.NotNil(t, hist.Messages)
}

func TestListForUserHidesPeerEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.register(t, "a"), f.register(t, "b")
	conv, err := f.conversations.CreateOrGet(ctx, a, b)
	require.NoError(t, err)
	require.NoError(t, f.store.Messages.Create(ctx, &models.Message{ConversationID: conv.ID, SenderID: b, Text: "hi"}))

	list, err := f.conversations.ListForUser(ctx, a)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b, list[0].Peer.ID)
	assert.Empty(t, list[0].Peer.Email)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "hi", list[0].LastMessage.Text)
}

func TestConnectionRequestAndAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.register(t, "a"), f.register(t, "b")

	view, err := f.connections.Get(ctx, a, b)
	require.NoError(t, err)
	assert.True(t, view.Actions.MustRequestFirst)
	assert.Nil(t, view.Connection)

	view, err = f.connections.Request(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, connection.StatePendingAsRequester, view.State)

	_, err = f.connections.Request(ctx, b, a)
	assert.ErrorIs(t, err, ErrAlreadyConnected)

	_, err = f.connections.Accept(ctx, a, b)
	assert.ErrorIs(t, err, ErrNotAddressee)

	view, err = f.connections.Get(ctx, b, a)
	require.NoError(t, err)
	assert.True(t, view.Actions.MustRespond)
	assert.Equal(t, connection.PlaceholderMustRespond, view.Placeholder)

	view, err = f.connections.Accept(ctx, b, a)
	require.NoError(t, err)
	assert.True(t, view.Actions.CanSend)
	assert.Equal(t, models.ConnectionAccepted, view.Connection.Status)

	list, err := f.connections.List(ctx, a)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestConnectionDeclineAndMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.register(t, "a"), f.register(t, "b")

	_, err := f.connections.Decline(ctx, b, a)
	assert.ErrorIs(t, err, ErrConnectionNotFound)

	_, err = f.connections.Request(ctx, a, b)
	require.NoError(t, err)
	view, err := f.connections.Decline(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionDeclined, view.Connection.Status)
	assert.Equal(t, connection.StateBlocked, view.State)
}

func TestConnectionBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.register(t, "a"), f.register(t, "b")

	view, err := f.connections.Block(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionBlocked, view.Connection.Status)
	assert.True(t, view.Actions.Blocked)

	_, err = f.connections.Block(ctx, a, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestBlockListOverridesConnection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.register(t, "a"), f.register(t, "b")

	_, err := f.connections.Request(ctx, a, b)
	require.NoError(t, err)
	_, err = f.connections.Accept(ctx, b, a)
	require.NoError(t, err)

	require.NoError(t, f.blocks.Block(ctx, b, a))
	view, err := f.connections.Get(ctx, a, b)
	require.NoError(t, err)
	assert.True(t, view.Actions.Blocked)
	assert.False(t, view.Actions.CanSend)

	list, err := f.blocks.List(ctx, b)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a, list[0].BlockedUserID)

	require.NoError(t, f.blocks.Unblock(ctx, b, a))
	view, err = f.connections.Get(ctx, a, b)
	require.NoError(t, err)
	assert.True(t, view.Actions.CanSend)

	assert.ErrorIs(t, f.blocks.Block(ctx, a, a), ErrSelfAction)
	assert.ErrorIs(t, f.blocks.Block(ctx, a, "ghost"), ErrUserNotFound)
}

func TestRequestRejectedWhenBlockListed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.register(t, "a"), f.register(t, "b")
	require.NoError(t, f.blocks.Block(ctx, b, a))

	_, err := f.connections.Request(ctx, a, b)
	assert.ErrorIs(t, err, ErrForbidden)
}

type stubPresigner struct {
	url string
	err error
}

func (p stubPresigner) PresignGet(ctx context.Context, key string) (string, time.Time, error) {
	return p.url + "/" + key, time.Unix(100, 0), p.err
}

func TestAttachmentResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := f.register(t, "a"), f.register(t, "b"), f.register(t, "c")
	conv, err := f.conversations.CreateOrGet(ctx, a, b)
	require.NoError(t, err)

	withFile := &models.Message{ConversationID: conv.ID, SenderID: a, Text: "photo", AttachmentKey: "img/1.png"}
	plain := &models.Message{ConversationID: conv.ID, SenderID: a, Text: "text"}
	require.NoError(t, f.store.Messages.Create(ctx, withFile))
	require.NoError(t, f.store.Messages.Create(ctx, plain))

	svc := NewAttachmentService(f.store, stubPresigner{url: "https://files"})
	resp, err := svc.Resolve(ctx, b, withFile.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://files/img/1.png", resp.URL)
	assert.Equal(t, withFile.ID, resp.MessageID)

	_, err = svc.Resolve(ctx, c, withFile.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = svc.Resolve(ctx, a, plain.ID)
	assert.ErrorIs(t, err, ErrNoAttachment)
	_, err = svc.Resolve(ctx, a, "missing")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	disabled := NewAttachmentService(f.store, nil)
	_, err = disabled.Resolve(ctx, a, withFile.ID)
	assert.ErrorIs(t, err, ErrStorageDisabled)

	broken := NewAttachmentService(f.store, stubPresigner{err: errors.New("boom")})
	_, err = broken.Resolve(ctx, a, withFile.ID)
	assert.Error(t, err)
}

func TestStoreFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a")
	f.db.SetFailure(errors.New("db down"))

	_, err := f.connections.Get(ctx, a, "b")
	assert.Error(t, err)
	_, err = f.conversations.ListForUser(ctx, a)
	assert.Error(t, err)
}

func TestListUsersHidesEmailAndViewer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	me := f.register(t, "viewer")
	for _, name := range []string{"khadija", "khalid", "omar"} {
		f.register(t, name)
	}

	page, err := f.users.ListUsers(ctx, me, &models.ListUsersQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	assert.Equal(t, defaultUserPageSize, page.Limit)
	assert.False(t, page.HasMore)
	require.Len(t, page.Users, 3)
	for _, u := range page.Users {
		assert.NotEqual(t, me, u.ID)
		assert.Empty(t, u.Email)
	}

	page, err = f.users.ListUsers(ctx, me, &models.ListUsersQuery{Q: "kha", Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	assert.Len(t, page.Users, 1)
	assert.True(t, page.HasMore)

	page, err = f.users.ListUsers(ctx, me, &models.ListUsersQuery{Offset: -4, Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Offset)
	assert.Equal(t, maxUserPageSize, page.Limit)
}

func TestGetUserIsPublicProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.register(t, "sumayya")

	got, err := f.users.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "sumayya", got.Username)
	assert.Empty(t, got.Email)

	_, err = f.users.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestReportSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.register(t, "reporter"), f.register(t, "reported")
	details := "  Sent repeated abusive messages after I declined.  "

	rep, err := f.reports.Submit(ctx, a, b, &models.ReportRequest{Category: "Harassment", Details: details, ContactOK: true})
	require.NoError(t, err)
	assert.Equal(t, b, rep.ReportedUserID)
	assert.Equal(t, "Sent repeated abusive messages after I declined.", rep.Details)
	assert.True(t, rep.ContactOK)

	stored, err := f.store.Reports.ListByReporter(ctx, a)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, rep.ID, stored[0].ID)

	cases := []struct {
		name   string
		target string
		req    models.ReportRequest
		want   error
	}{
		{"self", a, models.ReportRequest{Category: "Other", Details: details}, ErrSelfAction},
		{"unknown category", b, models.ReportRequest{Category: "Spam", Details: details}, ErrInvalidRequest},
		{"short details", b, models.ReportRequest{Category: "Other", Details: "   too short        "}, ErrInvalidRequest},
		{"missing user", "missing", models.ReportRequest{Category: "Other", Details: details}, ErrUserNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.reports.Submit(ctx, a, tc.target, &tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	stored, err = f.store.Reports.ListByReporter(ctx, a)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}
