package service

import (
	"github.com/google/uuid"
	"github.com/vedran77/studychat/internal/domain"
)

// TypingService relays typing signals. Nothing is stored; a signal that
// finds no live connection is dropped.
type TypingService struct {
	notifier Notifier
}

func NewTypingService() *TypingService {
	return &TypingService{}
}

func (s *TypingService) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *TypingService) SetTyping(userID, peerID uuid.UUID, isTyping bool) error {
	if peerID == uuid.Nil || peerID == userID || peerID == domain.AssistantID {
		return ErrInvalidRecipient
	}
	if s.notifier != nil {
		s.notifier.NotifyTyping(userID, peerID, isTyping)
	}
	return nil
}
