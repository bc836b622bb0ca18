package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	// EditWindow is how long after sending the original sender may edit or delete.
	EditWindow = 15 * time.Minute

	// AssistantReplyOffset is added to a question's timestamp to place the
	// assistant reply directly after it.
	AssistantReplyOffset = time.Millisecond
)

// AssistantID is the reserved sender identity of the AI assistant. It is
// never a receiver and never matches an authenticated user.
var AssistantID = uuid.MustParse("00000000-0000-0000-0000-00000000a1a1")

type Message struct {
	ID         uuid.UUID  `json:"id"`
	SenderID   uuid.UUID  `json:"sender_id"`
	ReceiverID uuid.UUID  `json:"receiver_id"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
	IsEdited   bool       `json:"is_edited"`
	EditedAt   *time.Time `json:"edited_at,omitempty"`
}

// FromAssistant reports whether the message was authored by the assistant.
func (m *Message) FromAssistant() bool {
	return m.SenderID == AssistantID
}

// InPair reports whether the message belongs to the conversation between a and b.
// Assistant replies addressed to either participant are part of the conversation.
func (m *Message) InPair(a, b uuid.UUID) bool {
	if m.SenderID == a && m.ReceiverID == b || m.SenderID == b && m.ReceiverID == a {
		return true
	}
	return m.FromAssistant() && (m.ReceiverID == a || m.ReceiverID == b)
}

// CanMutate is the edit/delete gate. Only the original sender may mutate a
// message, and only within EditWindow of its timestamp.
func CanMutate(msg *Message, actingUserID uuid.UUID, now time.Time) bool {
	if msg == nil || msg.FromAssistant() || actingUserID == AssistantID {
		return false
	}
	if msg.SenderID != actingUserID {
		return false
	}
	return now.Sub(msg.CreatedAt) <= EditWindow
}

// Timestamp normalizes a wall-clock time to the precision the stores keep.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
