package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/studychat/internal/config"
	"github.com/vedran77/studychat/internal/domain"
)

// wordCounter counts whitespace-separated words; deterministic for tests.
func wordCounter(text string) int {
	return len(strings.Fields(text))
}

func msg(sender uuid.UUID, content string) domain.Message {
	return domain.Message{ID: uuid.New(), SenderID: sender, Content: content}
}

func TestTrimHistoryDropsOldestFirst(t *testing.T) {
	a := uuid.New()
	history := []domain.Message{
		msg(a, "one two three"),
		msg(a, "four five"),
		msg(a, "six"),
	}

	assert.Len(t, TrimHistory(history, 100, wordCounter), 3)

	got := TrimHistory(history, 3, wordCounter)
	require.Len(t, got, 2)
	assert.Equal(t, "four five", got[0].Content)
	assert.Equal(t, "six", got[1].Content)

	assert.Empty(t, TrimHistory(history, 0, wordCounter))
}

func TestBuildTurnsLabelsParticipants(t *testing.T) {
	asker, peer := uuid.New(), uuid.New()
	req := Request{
		Question: "explain recursion",
		AskerID:  asker,
		PeerID:   peer,
		History: []domain.Message{
			msg(peer, "did you read chapter 3?"),
			msg(domain.AssistantID, "chapter 3 covers loops"),
			msg(asker, "yes"),
		},
		Context: json.RawMessage(`{"course":"CS101"}`),
	}

	turns := BuildTurns(req, 1000, wordCounter)
	require.Len(t, turns, 5)
	assert.Equal(t, RoleSystem, turns[0].Role)
	assert.Contains(t, turns[0].Content, `"course":"CS101"`)
	assert.Equal(t, Turn{Role: RoleUser, Content: "Peer: did you read chapter 3?"}, turns[1])
	assert.Equal(t, Turn{Role: RoleAssistant, Content: "chapter 3 covers loops"}, turns[2])
	assert.Equal(t, Turn{Role: RoleUser, Content: "Asker: yes"}, turns[3])
	assert.Equal(t, Turn{Role: RoleUser, Content: "Asker: explain recursion"}, turns[4])

	flat := Flatten(turns)
	assert.True(t, strings.HasSuffix(flat, "assistant:"))
	assert.Contains(t, flat, "user: Asker: explain recursion\n")
}

func TestApproxCounter(t *testing.T) {
	assert.Equal(t, 0, ApproxCounter(""))
	assert.Equal(t, 1, ApproxCounter("abcd"))
	assert.Equal(t, 2, ApproxCounter("abcde"))
}

type slowClient struct{}

func (slowClient) Ask(ctx context.Context, req Request) (Reply, error) {
	select {
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	case <-time.After(time.Second):
		return Reply{Text: "late"}, nil
	}
}

func TestWithTimeout(t *testing.T) {
	c := WithTimeout(slowClient{}, 20*time.Millisecond)
	_, err := c.Ask(context.Background(), Request{Question: "q"})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	assert.Equal(t, Client(slowClient{}), WithTimeout(slowClient{}, 0))
}

func TestNewDisabled(t *testing.T) {
	c, err := New(config.AI{Provider: "disabled"})
	require.NoError(t, err)
	_, err = c.Ask(context.Background(), Request{Question: "q"})
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = New(config.AI{Provider: "crystal-ball"})
	assert.Error(t, err)
}

func TestOpenAIClientAsk(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "  A function that calls itself.  "}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(config.AI{APIKey: "test-key", BaseURL: srv.URL, Model: "gpt-4o-mini", HistoryTokens: 1000}, wordCounter)
	reply, err := c.Ask(context.Background(), Request{Question: "explain recursion", AskerID: uuid.New(), PeerID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, "A function that calls itself.", reply.Text)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "Asker: explain recursion", got.Messages[1].Content)
}

func TestOpenAIClientEmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "x", "object": "chat.completion", "created": 1, "model": "m", "choices": []}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(config.AI{APIKey: "k", BaseURL: srv.URL, Model: "gpt-4o-mini", HistoryTokens: 100}, wordCounter)
	_, err := c.Ask(context.Background(), Request{Question: "q"})
	assert.ErrorIs(t, err, ErrEmptyReply)
}
