package assistant

import (
	"fmt"
	"strings"

	"github.com/vedran77/studychat/internal/domain"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const systemPrompt = `You are a study assistant invited into a conversation between two students.
Answer the latest question clearly and concisely. Messages from the students are prefixed
with "Asker:" (the student asking now) or "Peer:" (the other student).`

// Turn is one provider-neutral chat message.
type Turn struct {
	Role    string
	Content string
}

// BuildTurns renders the request as a system turn, the trimmed history and
// the question.
func BuildTurns(req Request, historyTokens int, count TokenCounter) []Turn {
	system := systemPrompt
	if len(req.Context) > 0 {
		system += "\n\nAdditional context supplied by the app (JSON):\n" + string(req.Context)
	}

	turns := []Turn{{Role: RoleSystem, Content: system}}
	for _, m := range TrimHistory(req.History, historyTokens-count(system)-count(req.Question), count) {
		turns = append(turns, historyTurn(req, m))
	}
	turns = append(turns, Turn{Role: RoleUser, Content: "Asker: " + req.Question})
	return turns
}

func historyTurn(req Request, m domain.Message) Turn {
	switch m.SenderID {
	case domain.AssistantID:
		return Turn{Role: RoleAssistant, Content: m.Content}
	case req.AskerID:
		return Turn{Role: RoleUser, Content: "Asker: " + m.Content}
	default:
		return Turn{Role: RoleUser, Content: "Peer: " + m.Content}
	}
}

// TrimHistory drops the oldest messages until the rest fit in budget tokens.
func TrimHistory(history []domain.Message, budget int, count TokenCounter) []domain.Message {
	if budget <= 0 {
		return nil
	}
	total := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		n := count(history[i].Content)
		if total+n > budget {
			break
		}
		total += n
		start = i
	}
	return history[start:]
}

// Flatten renders turns as a single prompt for completion-style models.
func Flatten(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		switch t.Role {
		case RoleSystem:
			b.WriteString(t.Content)
			b.WriteString("\n\nConversation:\n")
		default:
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
		}
	}
	b.WriteString("assistant:")
	return b.String()
}
