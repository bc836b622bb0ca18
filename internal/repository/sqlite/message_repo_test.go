package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/studychat/internal/domain"
)

func newRepos(t *testing.T) (*MessageRepo, *UserRepo) {
	t.Helper()
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMessageRepo(db), NewUserRepo(db)
}

func TestMessageRoundTrip(t *testing.T) {
	ctx := context.Background()
	msgs, _ := newRepos(t)
	a, b := uuid.New(), uuid.New()
	at := domain.Timestamp(time.Now())

	msg := domain.Message{SenderID: a, ReceiverID: b, Content: "Hello", CreatedAt: at}
	require.NoError(t, msgs.Create(ctx, &msg))

	got, err := msgs.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a, got.SenderID)
	assert.Equal(t, b, got.ReceiverID)
	assert.Equal(t, "Hello", got.Content)
	assert.True(t, at.Equal(got.CreatedAt))
	assert.False(t, got.IsEdited)
	assert.Nil(t, got.EditedAt)

	editedAt := domain.Timestamp(time.Now())
	require.NoError(t, msgs.UpdateContent(ctx, msg.ID, "Hello!", editedAt))
	got, err = msgs.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello!", got.Content)
	assert.True(t, got.IsEdited)
	require.NotNil(t, got.EditedAt)
	assert.True(t, editedAt.Equal(*got.EditedAt))

	require.NoError(t, msgs.Delete(ctx, msg.ID))
	got, err = msgs.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListByPairIncludesAssistantReplies(t *testing.T) {
	ctx := context.Background()
	msgs, _ := newRepos(t)
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	t0 := domain.Timestamp(time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))

	q := domain.Message{SenderID: a, ReceiverID: b, Content: "@assistant explain recursion", CreatedAt: t0}
	reply := domain.Message{SenderID: domain.AssistantID, ReceiverID: b, Content: "a function calling itself", CreatedAt: t0.Add(domain.AssistantReplyOffset)}
	require.NoError(t, msgs.CreateExchange(ctx, &q, &reply))

	other := domain.Message{SenderID: c, ReceiverID: a, Content: "unrelated", CreatedAt: t0}
	require.NoError(t, msgs.Create(ctx, &other))

	got, err := msgs.ListByPair(ctx, b, a, nil, 50)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, q.ID, got[0].ID)
	assert.Equal(t, reply.ID, got[1].ID)
	assert.Equal(t, domain.AssistantReplyOffset, got[1].CreatedAt.Sub(got[0].CreatedAt))

	older, err := msgs.ListByPair(ctx, a, b, &reply.ID, 50)
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, q.ID, older[0].ID)
}

func TestUserRepo(t *testing.T) {
	ctx := context.Background()
	_, users := newRepos(t)
	now := domain.Timestamp(time.Now())
	u := domain.User{ID: uuid.New(), Email: "ana@example.com", Username: "ana", DisplayName: "Ana", PasswordHash: "x:y", CreatedAt: now}
	require.NoError(t, users.Create(ctx, &u))

	got, err := users.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, now.Equal(got.CreatedAt))

	dup := u
	dup.ID = uuid.New()
	assert.Error(t, users.Create(ctx, &dup))

	missing, err := users.GetByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
