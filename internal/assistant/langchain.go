package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
	"github.com/vedran77/studychat/internal/config"
)

// LangChainClient sends a flattened prompt through a langchaingo model. It
// is meant for OpenAI-compatible local servers such as Ollama.
type LangChainClient struct {
	llm           llms.Model
	temperature   float64
	historyTokens int
	count         TokenCounter
}

func NewLangChainClient(cfg config.AI, count TokenCounter) (*LangChainClient, error) {
	opts := []lcopenai.Option{lcopenai.WithModel(cfg.Model)}
	if cfg.APIKey != "" {
		opts = append(opts, lcopenai.WithToken(cfg.APIKey))
	} else {
		// the provider insists on a token even for servers that ignore it
		opts = append(opts, lcopenai.WithToken("unused"))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lcopenai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := lcopenai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating langchain model: %w", err)
	}
	return &LangChainClient{
		llm:           llm,
		temperature:   float64(cfg.Temperature),
		historyTokens: cfg.HistoryTokens,
		count:         count,
	}, nil
}

func (c *LangChainClient) Ask(ctx context.Context, req Request) (Reply, error) {
	prompt := Flatten(BuildTurns(req, c.historyTokens, c.count))

	completion, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt, llms.WithTemperature(c.temperature))
	if err != nil {
		return Reply{}, fmt.Errorf("langchain completion: %w", err)
	}

	text := strings.TrimSpace(completion)
	if text == "" {
		return Reply{}, ErrEmptyReply
	}
	return Reply{Text: text}, nil
}
