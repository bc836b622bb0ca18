package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/vedran77/studychat/internal/config"
)

// OpenAIClient calls the chat completions API (or any compatible server).
type OpenAIClient struct {
	client        *openai.Client
	model         string
	temperature   float32
	historyTokens int
	count         TokenCounter
}

func NewOpenAIClient(cfg config.AI, count TokenCounter) *OpenAIClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		client:        openai.NewClientWithConfig(clientConfig),
		model:         cfg.Model,
		temperature:   cfg.Temperature,
		historyTokens: cfg.HistoryTokens,
		count:         count,
	}
}

func (c *OpenAIClient) Ask(ctx context.Context, req Request) (Reply, error) {
	turns := BuildTurns(req, c.historyTokens, c.count)
	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, openai.ChatCompletionMessage{Role: t.Role, Content: t.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		N:           1,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, ErrEmptyReply
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return Reply{}, ErrEmptyReply
	}
	return Reply{Text: text}, nil
}
