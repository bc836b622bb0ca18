package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/studychat/internal/assistant"
	"github.com/vedran77/studychat/internal/domain"
	"github.com/vedran77/studychat/internal/metrics"
	"github.com/vedran77/studychat/internal/repository"
	"go.uber.org/zap"
)

// Notifier pushes real-time events to the live connections of recipients.
// Delivery is best effort.
type Notifier interface {
	NotifyNewMessage(recipients []uuid.UUID, msg *domain.Message)
	NotifyEditedMessage(recipients []uuid.UUID, msg *domain.Message)
	NotifyDeletedMessage(recipients []uuid.UUID, messageID uuid.UUID)
	NotifyTyping(userID, peerID uuid.UUID, isTyping bool)
}

// MessageService persists sends, edits and deletes and fans them out.
type MessageService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	assistant   assistant.Client
	parser      domain.IntentParser
	notifier    Notifier
	log         *zap.Logger
	now         func() time.Time
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	ai assistant.Client,
	parser domain.IntentParser,
	log *zap.Logger,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		assistant:   ai,
		parser:      parser,
		log:         log,
		now:         time.Now,
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *MessageService) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetClock replaces the wall clock.
func (s *MessageService) SetClock(now func() time.Time) {
	s.now = now
}

type SendMessageInput struct {
	Content string          `json:"content"`
	Context json.RawMessage `json:"context,omitempty"`
}

type EditMessageInput struct {
	Content string `json:"content"`
}

// SendResult is the canonical outcome of a send. Reply is set for
// assistant queries.
type SendResult struct {
	Message domain.Message  `json:"message"`
	Reply   *domain.Message `json:"reply,omitempty"`
}

type MessageListResponse struct {
	Messages []domain.Message `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

func (s *MessageService) Send(ctx context.Context, senderID, receiverID uuid.UUID, input SendMessageInput) (*SendResult, error) {
	if err := domain.CheckContent(input.Content); err != nil {
		return nil, invalid(err)
	}
	intent, err := s.parser.Parse(input.Content)
	if err != nil {
		return nil, invalid(err)
	}
	if err := s.checkRecipient(ctx, senderID, receiverID); err != nil {
		return nil, err
	}

	now := domain.Timestamp(s.now())
	if intent.Kind == domain.IntentAssistantQuery {
		return s.interleave(ctx, senderID, receiverID, intent, input.Context, now)
	}

	msg := &domain.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    intent.Raw,
		CreatedAt:  now,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: creating message: %w", ErrSendFailed, err)
	}
	metrics.MessagesPersisted.WithLabelValues("plain").Inc()

	s.notifyNew(msg, senderID, receiverID)
	return &SendResult{Message: *msg}, nil
}

func (s *MessageService) History(ctx context.Context, userID, peerID uuid.UUID, before *uuid.UUID, limit int) (*MessageListResponse, error) {
	if err := s.checkRecipient(ctx, userID, peerID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}

	// fetch one extra to learn whether there is more
	messages, err := s.messageRepo.ListByPair(ctx, userID, peerID, before, limit+1)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[len(messages)-limit:]
	}

	if messages == nil {
		messages = []domain.Message{}
	}

	return &MessageListResponse{
		Messages: messages,
		HasMore:  hasMore,
	}, nil
}

func (s *MessageService) Edit(ctx context.Context, userID, messageID uuid.UUID, input EditMessageInput) (*domain.Message, error) {
	if err := domain.CheckContent(input.Content); err != nil {
		return nil, invalid(err)
	}

	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}

	now := domain.Timestamp(s.now())
	if err := authorize(msg, userID, now); err != nil {
		metrics.Mutations.WithLabelValues("edit", "denied").Inc()
		return nil, err
	}

	if err := s.messageRepo.UpdateContent(ctx, messageID, input.Content, now); err != nil {
		return nil, fmt.Errorf("updating message: %w", err)
	}

	updated, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrMessageNotFound
	}
	metrics.Mutations.WithLabelValues("edit", "ok").Inc()

	if s.notifier != nil {
		s.notifier.NotifyEditedMessage(participants(updated.SenderID, updated.ReceiverID), updated)
	}

	return updated, nil
}

func (s *MessageService) Delete(ctx context.Context, userID, messageID uuid.UUID) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return ErrMessageNotFound
	}

	if err := authorize(msg, userID, domain.Timestamp(s.now())); err != nil {
		metrics.Mutations.WithLabelValues("delete", "denied").Inc()
		return err
	}

	if err := s.messageRepo.Delete(ctx, messageID); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	metrics.Mutations.WithLabelValues("delete", "ok").Inc()

	if s.notifier != nil {
		s.notifier.NotifyDeletedMessage(participants(msg.SenderID, msg.ReceiverID), messageID)
	}

	return nil
}

// authorize explains why the gate refused.
func authorize(msg *domain.Message, userID uuid.UUID, now time.Time) error {
	if domain.CanMutate(msg, userID, now) {
		return nil
	}
	switch {
	case msg.FromAssistant():
		return ErrAssistantImmutable
	case msg.SenderID != userID:
		return ErrNotMessageOwner
	default:
		return ErrEditWindowClosed
	}
}

func (s *MessageService) checkRecipient(ctx context.Context, userID, peerID uuid.UUID) error {
	if peerID == uuid.Nil || peerID == userID || peerID == domain.AssistantID {
		return ErrInvalidRecipient
	}
	peer, err := s.userRepo.GetByID(ctx, peerID)
	if err != nil {
		return fmt.Errorf("looking up recipient: %w", err)
	}
	if peer == nil {
		return ErrInvalidRecipient
	}
	return nil
}

func (s *MessageService) notifyNew(msg *domain.Message, userA, userB uuid.UUID) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyNewMessage(participants(userA, userB), msg)
}

// participants returns the human identities among ids.
func participants(ids ...uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == domain.AssistantID || id == uuid.Nil {
			continue
		}
		out = append(out, id)
	}
	return out
}
