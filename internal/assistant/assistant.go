// Package assistant is the boundary to the AI text-completion service.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/studychat/internal/config"
	"github.com/vedran77/studychat/internal/domain"
)

var (
	ErrDisabled   = errors.New("assistant is disabled")
	ErrEmptyReply = errors.New("assistant returned an empty reply")
)

// Request is one question plus its context bundle.
type Request struct {
	Question string
	AskerID  uuid.UUID
	PeerID   uuid.UUID
	// History is the recent pair conversation, oldest first.
	History []domain.Message
	// Context is an opaque caller-supplied object forwarded to the model.
	Context json.RawMessage
}

type Reply struct {
	Text string
}

// Client answers a single question synchronously.
type Client interface {
	Ask(ctx context.Context, req Request) (Reply, error)
}

// New builds the client selected by cfg.Provider, bounded by cfg.Timeout.
func New(cfg config.AI) (Client, error) {
	var (
		c   Client
		err error
	)
	switch cfg.Provider {
	case "openai":
		c = NewOpenAIClient(cfg, NewTiktokenCounter(cfg.Model))
	case "langchain":
		c, err = NewLangChainClient(cfg, NewTiktokenCounter(cfg.Model))
	case "disabled", "":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return WithTimeout(c, cfg.Timeout), nil
}

// Disabled fails every call, which the interleave handler turns into a
// failure notice.
type Disabled struct{}

func (Disabled) Ask(context.Context, Request) (Reply, error) {
	return Reply{}, ErrDisabled
}

type timeoutClient struct {
	next    Client
	timeout time.Duration
}

// WithTimeout bounds every Ask on next by d. A non-positive d disables the bound.
func WithTimeout(next Client, d time.Duration) Client {
	if d <= 0 {
		return next
	}
	return &timeoutClient{next: next, timeout: d}
}

func (c *timeoutClient) Ask(ctx context.Context, req Request) (Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.next.Ask(ctx, req)
}
