package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/studychat/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// MessageRepository is the message store. Create assigns the canonical ID.
// GetByID returns (nil, nil) when the message does not exist.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	// CreateExchange writes an assistant question and its reply atomically,
	// question first.
	CreateExchange(ctx context.Context, question, reply *domain.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	// ListByPair returns the conversation between a and b in ascending
	// timestamp order. When before is set only older messages are returned;
	// at most limit of the newest matching messages are kept.
	ListByPair(ctx context.Context, a, b uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error)
	UpdateContent(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}
