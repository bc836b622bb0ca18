package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/studychat/internal/assistant"
	"github.com/vedran77/studychat/internal/domain"
	"github.com/vedran77/studychat/internal/repository/memory"
	"github.com/vedran77/studychat/internal/service"
	"go.uber.org/zap"
)

const secret = "handler-test-secret"

type failingAssistant struct{}

func (failingAssistant) Ask(context.Context, assistant.Request) (assistant.Reply, error) {
	return assistant.Reply{}, errors.New("model overloaded")
}

type api struct {
	t       *testing.T
	handler http.Handler
}

func newAPI(t *testing.T) *api {
	t.Helper()
	log := zap.NewNop()
	users := memory.NewUserRepo()
	messages := memory.NewMessageRepo()

	authSvc := service.NewAuthService(users, secret)
	msgSvc := service.NewMessageService(messages, users, failingAssistant{}, domain.NewIntentParser(""), log)

	return &api{t: t, handler: NewRouter(Routes{
		Auth:      NewAuthHandler(authSvc, log),
		Messages:  NewMessageHandler(msgSvc, log),
		JWTSecret: secret,
	})}
}

func (a *api) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *api) register(name string) service.AuthResponse {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/v1/auth/register", "", service.RegisterInput{
		Email:       name + "@example.com",
		Username:    name,
		DisplayName: name,
		Password:    "Password123",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp service.AuthResponse
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestAuthFlow(t *testing.T) {
	a := newAPI(t)
	alice := a.register("alice")
	assert.NotEmpty(t, alice.AccessToken)

	rec := a.do(http.MethodPost, "/api/v1/auth/register", "", service.RegisterInput{
		Email: "alice@example.com", Username: "alice2", DisplayName: "Alice", Password: "Password123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "EMAIL_TAKEN", errorCode(t, rec))

	rec = a.do(http.MethodPost, "/api/v1/auth/login", "", service.LoginInput{Email: "alice@example.com", Password: "Password123"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodPost, "/api/v1/auth/login", "", service.LoginInput{Email: "alice@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConversationEndpoints(t *testing.T) {
	a := newAPI(t)
	alice := a.register("alice")
	bob := a.register("bob")
	path := "/api/v1/conversations/" + bob.User.ID.String() + "/messages"

	rec := a.do(http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodPost, path, alice.AccessToken, service.SendMessageInput{Content: "hello"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sent service.SendResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	assert.Nil(t, sent.Reply)

	rec = a.do(http.MethodPost, path, alice.AccessToken, service.SendMessageInput{Content: "@assistant summarize chapter 3"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var asked service.SendResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &asked))
	require.NotNil(t, asked.Reply)
	assert.Equal(t, service.AssistantFailureNotice, asked.Reply.Content)

	rec = a.do(http.MethodPost, path, alice.AccessToken, service.SendMessageInput{Content: "@assistant"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))

	rec = a.do(http.MethodPost, path, alice.AccessToken, service.SendMessageInput{Content: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/api/v1/conversations/"+alice.User.ID.String()+"/messages?limit=2", bob.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list service.MessageListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.True(t, list.HasMore)
	require.Len(t, list.Messages, 2)
	assert.Equal(t, domain.AssistantID, list.Messages[1].SenderID)

	rec = a.do(http.MethodGet, path+"?before=nope", alice.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessageMutationEndpoints(t *testing.T) {
	a := newAPI(t)
	alice := a.register("alice")
	bob := a.register("bob")
	path := "/api/v1/conversations/" + bob.User.ID.String() + "/messages"

	rec := a.do(http.MethodPost, path, alice.AccessToken, service.SendMessageInput{Content: "typo"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var sent service.SendResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	msgPath := "/api/v1/messages/" + sent.Message.ID.String()

	rec = a.do(http.MethodPatch, msgPath, bob.AccessToken, service.EditMessageInput{Content: "mine now"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, rec))

	rec = a.do(http.MethodPatch, msgPath, alice.AccessToken, service.EditMessageInput{Content: "fixed"})
	require.Equal(t, http.StatusOK, rec.Code)
	var edited domain.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &edited))
	assert.Equal(t, "fixed", edited.Content)
	assert.True(t, edited.IsEdited)

	rec = a.do(http.MethodDelete, msgPath, alice.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(http.MethodDelete, msgPath, alice.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodDelete, "/api/v1/messages/"+uuid.NewString()[:8], alice.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
