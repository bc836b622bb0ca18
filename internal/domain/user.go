package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a human participant. The assistant is not a user row; it only
// appears as AssistantID on the messages it authors.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// reservedUsernames would read like the assistant in a conversation.
var reservedUsernames = map[string]bool{
	"assistant": true,
	"ai":        true,
	"system":    true,
}

// IsReservedUsername reports whether name is held back for the assistant.
// The comparison ignores case and a leading "@".
func IsReservedUsername(name string) bool {
	name = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "@")
	return reservedUsernames[name]
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
