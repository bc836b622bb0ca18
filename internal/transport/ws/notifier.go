package ws

import (
	"github.com/google/uuid"
	"github.com/vedran77/studychat/internal/domain"
	"go.uber.org/zap"
)

// HubNotifier implements service.Notifier using the WebSocket Hub.
type HubNotifier struct {
	hub *Hub
	log *zap.Logger
}

func NewHubNotifier(hub *Hub, log *zap.Logger) *HubNotifier {
	return &HubNotifier{hub: hub, log: log}
}

func (n *HubNotifier) NotifyNewMessage(recipients []uuid.UUID, msg *domain.Message) {
	n.push(recipients, EventTypeMessageNew, MessagePayload{Message: *msg})
}

func (n *HubNotifier) NotifyEditedMessage(recipients []uuid.UUID, msg *domain.Message) {
	n.push(recipients, EventTypeMessageEdited, MessagePayload{Message: *msg})
}

func (n *HubNotifier) NotifyDeletedMessage(recipients []uuid.UUID, messageID uuid.UUID) {
	n.push(recipients, EventTypeMessageDeleted, MessageDeletedPayload{ID: messageID})
}

func (n *HubNotifier) NotifyTyping(userID, peerID uuid.UUID, isTyping bool) {
	n.push([]uuid.UUID{peerID}, EventTypeTyping, TypingPayload{UserID: userID, IsTyping: isTyping})
}

func (n *HubNotifier) push(recipients []uuid.UUID, eventType string, payload any) {
	evt, err := NewEvent(eventType, payload)
	if err != nil {
		n.log.Error("ws notifier: marshal error", zap.String("type", eventType), zap.Error(err))
		return
	}
	n.hub.SendToUsers(recipients, evt)
}
