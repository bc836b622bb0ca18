package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/studychat/internal/domain"
)

// MessageRepo keeps messages in a map guarded by a single lock.
type MessageRepo struct {
	mu       sync.RWMutex
	messages map[uuid.UUID]domain.Message
}

func NewMessageRepo() *MessageRepo {
	return &MessageRepo{messages: make(map[uuid.UUID]domain.Message)}
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insert(msg)
	return nil
}

func (r *MessageRepo) CreateExchange(ctx context.Context, question, reply *domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insert(question)
	r.insert(reply)
	return nil
}

func (r *MessageRepo) insert(msg *domain.Message) {
	msg.ID = uuid.New()
	r.messages[msg.ID] = *msg
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msg, ok := r.messages[id]
	if !ok {
		return nil, nil
	}
	return &msg, nil
}

func (r *MessageRepo) ListByPair(ctx context.Context, a, b uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var cursor *domain.Message
	if before != nil {
		if c, ok := r.messages[*before]; ok {
			cursor = &c
		} else {
			return nil, nil
		}
	}

	var out []domain.Message
	for _, m := range r.messages {
		if !m.InPair(a, b) {
			continue
		}
		if cursor != nil && !less(&m, cursor) {
			continue
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool { return less(&out[i], &out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *MessageRepo) UpdateContent(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.messages[id]
	if !ok {
		return nil
	}
	msg.Content = content
	msg.IsEdited = true
	msg.EditedAt = &editedAt
	r.messages[id] = msg
	return nil
}

func (r *MessageRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.messages, id)
	return nil
}

// Len returns the number of stored messages.
func (r *MessageRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}

// less orders by timestamp, then id, matching the SQL stores.
func less(x, y *domain.Message) bool {
	if !x.CreatedAt.Equal(y.CreatedAt) {
		return x.CreatedAt.Before(y.CreatedAt)
	}
	return x.ID.String() < y.ID.String()
}
