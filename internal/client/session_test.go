package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/studychat/internal/assistant"
	"github.com/vedran77/studychat/internal/domain"
	"github.com/vedran77/studychat/internal/reconcile"
	"github.com/vedran77/studychat/internal/repository/memory"
	"github.com/vedran77/studychat/internal/service"
	"github.com/vedran77/studychat/internal/transport/http/handlers"
	"github.com/vedran77/studychat/internal/transport/ws"
	"go.uber.org/zap"
)

const secret = "client-test-secret"

type echoAssistant struct{}

func (echoAssistant) Ask(ctx context.Context, req assistant.Request) (assistant.Reply, error) {
	return assistant.Reply{Text: "You asked: " + req.Question}, nil
}

type stack struct {
	srv  *httptest.Server
	hub  *ws.Hub
	auth *service.AuthService
}

func newStack(t *testing.T) *stack {
	t.Helper()
	log := zap.NewNop()
	users := memory.NewUserRepo()
	messages := memory.NewMessageRepo()
	parser := domain.NewIntentParser("")

	hub := ws.NewHub(log)
	notifier := ws.NewHubNotifier(hub, log)
	authSvc := service.NewAuthService(users, secret)
	msgSvc := service.NewMessageService(messages, users, echoAssistant{}, parser, log)
	msgSvc.SetNotifier(notifier)
	typingSvc := service.NewTypingService()
	typingSvc.SetNotifier(notifier)

	router := handlers.NewRouter(handlers.Routes{
		Auth:     handlers.NewAuthHandler(authSvc, log),
		Messages: handlers.NewMessageHandler(msgSvc, log),
		WS: ws.ServeWS(hub, &ws.Dispatcher{
			Messages:  msgSvc,
			Typing:    typingSvc,
			Parser:    parser,
			RateRPS:   100,
			RateBurst: 100,
			Log:       log,
		}, secret),
		JWTSecret: secret,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &stack{srv: srv, hub: hub, auth: authSvc}
}

func (st *stack) user(t *testing.T, name string) Credentials {
	t.Helper()
	reg, err := st.auth.Register(context.Background(), service.RegisterInput{
		Email:       name + "@example.com",
		Username:    name,
		DisplayName: name,
		Password:    "Password123",
	})
	require.NoError(t, err)

	creds, err := Login(context.Background(), st.srv.Client(), st.srv.URL, name+"@example.com", "Password123")
	require.NoError(t, err)
	require.Equal(t, reg.User.ID, creds.UserID)
	require.NotEmpty(t, creds.Token)
	return creds
}

func (st *stack) dial(t *testing.T, creds Credentials, peer uuid.UUID) *Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := Dial(ctx, st.srv.URL, creds, peer, Options{TypingIdle: 300 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.Eventually(t, func() bool { return st.hub.IsOnline(creds.UserID) }, 2*time.Second, 10*time.Millisecond)
	return s
}

func confirmed(s *Session) []reconcile.Entry {
	var out []reconcile.Entry
	for _, e := range s.Entries() {
		if e.State == reconcile.Confirmed {
			out = append(out, e)
		}
	}
	return out
}

func TestOptimisticSendIsReconciledOnce(t *testing.T) {
	st := newStack(t)
	alice, bob := st.user(t, "alice"), st.user(t, "bob")
	as := st.dial(t, alice, bob.UserID)
	bs := st.dial(t, bob, alice.UserID)
	ctx := context.Background()

	entry, err := as.Send(ctx, "Hello", nil)
	require.NoError(t, err)

	local := as.Entries()
	require.NotEmpty(t, local)
	assert.Equal(t, "Hello", local[len(local)-1].Message.Content)

	require.Eventually(t, func() bool { return len(confirmed(as)) == 1 }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(confirmed(bs)) == 1 }, 3*time.Second, 10*time.Millisecond)

	mine := as.Entries()
	require.Len(t, mine, 1)
	assert.Equal(t, entry.LocalID, mine[0].LocalID)
	assert.NotEqual(t, uuid.Nil, mine[0].Message.ID)
	assert.Equal(t, mine[0].Message.ID, bs.Entries()[0].Message.ID)
}

func TestAssistantExchangeGroupsAsOneUnit(t *testing.T) {
	st := newStack(t)
	alice, bob := st.user(t, "alice"), st.user(t, "bob")
	as := st.dial(t, alice, bob.UserID)
	bs := st.dial(t, bob, alice.UserID)

	_, err := as.Send(context.Background(), "@assistant explain recursion", []byte(`{"topic":"cs"}`))
	require.NoError(t, err)

	for _, s := range []*Session{as, bs} {
		require.Eventually(t, func() bool { return len(confirmed(s)) == 2 }, 3*time.Second, 10*time.Millisecond)
		units := s.Groups()
		require.Len(t, units, 1)
		assert.Equal(t, "@assistant explain recursion", units[0].Primary.Message.Content)
		require.NotNil(t, units[0].Reply)
		assert.Equal(t, domain.AssistantID, units[0].Reply.Message.SenderID)
		assert.Equal(t, "You asked: explain recursion", units[0].Reply.Message.Content)
	}
}

func TestSendRejectsBareTagLocally(t *testing.T) {
	st := newStack(t)
	alice, bob := st.user(t, "alice"), st.user(t, "bob")
	as := st.dial(t, alice, bob.UserID)

	_, err := as.Send(context.Background(), "  @assistant ", nil)
	assert.ErrorIs(t, err, domain.ErrEmptyQuestion)

	_, err = as.Send(context.Background(), strings.Repeat("a", domain.MaxContentLength+1), nil)
	assert.ErrorIs(t, err, domain.ErrContentTooLong)
	assert.Empty(t, as.Entries())
}

func TestLoginRejectsBadPassword(t *testing.T) {
	st := newStack(t)
	st.user(t, "alice")

	_, err := Login(context.Background(), st.srv.Client(), st.srv.URL, "alice@example.com", "nope")
	var serr ServerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "INVALID_CREDENTIALS", serr.Code)
}

func TestServerRejectionMarksEntryFailed(t *testing.T) {
	st := newStack(t)
	alice := st.user(t, "alice")
	as := st.dial(t, alice, uuid.New())

	entry, err := as.Send(context.Background(), "hello?", nil)
	require.NoError(t, err)

	select {
	case e := <-as.Errors():
		assert.Equal(t, "VALIDATION_ERROR", e.Code)
		assert.Equal(t, entry.LocalID, e.Nonce)
	case <-time.After(3 * time.Second):
		t.Fatal("no error event")
	}
	entries := as.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, reconcile.Failed, entries[0].State)
}

func TestEditDeleteAndHistory(t *testing.T) {
	st := newStack(t)
	alice, bob := st.user(t, "alice"), st.user(t, "bob")
	as := st.dial(t, alice, bob.UserID)
	bs := st.dial(t, bob, alice.UserID)
	ctx := context.Background()

	_, err := as.Send(ctx, "meet at 5", nil)
	require.NoError(t, err)
	_, err = as.Send(ctx, "wrong chat", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(confirmed(bs)) == 2 }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(confirmed(as)) == 2 }, 3*time.Second, 10*time.Millisecond)

	entries := as.Entries()
	require.Len(t, entries, 2)
	first, second := entries[0].Message, entries[1].Message

	assert.ErrorIs(t, bs.Edit(ctx, first.ID, "mine"), ErrNotAllowed)

	require.NoError(t, as.Edit(ctx, first.ID, "meet at 6"))
	require.NoError(t, as.Delete(ctx, second.ID))

	require.Eventually(t, func() bool {
		got := bs.Entries()
		return len(got) == 1 && got[0].Message.Content == "meet at 6" && got[0].Message.IsEdited
	}, 3*time.Second, 10*time.Millisecond)

	late := st.dial(t, bob, alice.UserID)
	require.NoError(t, late.LoadHistory(ctx))
	history := late.Entries()
	require.Len(t, history, 1)
	assert.Equal(t, first.ID, history[0].Message.ID)
	assert.Equal(t, "meet at 6", history[0].Message.Content)
}

func TestTypingReachesPeer(t *testing.T) {
	st := newStack(t)
	alice, bob := st.user(t, "alice"), st.user(t, "bob")
	as := st.dial(t, alice, bob.UserID)
	bs := st.dial(t, bob, alice.UserID)

	as.KeyPress()
	require.Eventually(t, bs.PeerTyping, 2*time.Second, 10*time.Millisecond)

	// no further input: the idle timer emits "stopped"
	require.Eventually(t, func() bool { return !bs.PeerTyping() }, 2*time.Second, 10*time.Millisecond)

	as.KeyPress()
	require.Eventually(t, bs.PeerTyping, 2*time.Second, 10*time.Millisecond)
	as.StopTyping()
	require.Eventually(t, func() bool { return !bs.PeerTyping() }, 2*time.Second, 10*time.Millisecond)
}

func TestPeerPresence(t *testing.T) {
	st := newStack(t)
	alice, bob := st.user(t, "alice"), st.user(t, "bob")
	as := st.dial(t, alice, bob.UserID)
	assert.False(t, as.PeerOnline())

	bs := st.dial(t, bob, alice.UserID)
	require.Eventually(t, as.PeerOnline, 2*time.Second, 10*time.Millisecond)
	// alice was connected first, so bob learns it from the snapshot
	require.Eventually(t, bs.PeerOnline, 2*time.Second, 10*time.Millisecond)

	bs.Close()
	require.Eventually(t, func() bool { return !as.PeerOnline() }, 2*time.Second, 10*time.Millisecond)
}
