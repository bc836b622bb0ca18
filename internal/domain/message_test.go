package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCanMutate(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	sent := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := &Message{ID: uuid.New(), SenderID: alice, ReceiverID: bob, Content: "hi", CreatedAt: sent}

	tests := []struct {
		name  string
		actor uuid.UUID
		now   time.Time
		want  bool
	}{
		{"sender right away", alice, sent, true},
		{"sender after two minutes", alice, sent.Add(2 * time.Minute), true},
		{"sender at window edge", alice, sent.Add(EditWindow), true},
		{"sender just past window", alice, sent.Add(EditWindow + time.Nanosecond), false},
		{"sender after twenty minutes", alice, sent.Add(20 * time.Minute), false},
		{"receiver", bob, sent, false},
		{"stranger", uuid.New(), sent, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanMutate(msg, tt.actor, tt.now))
		})
	}
}

func TestCanMutateRejectsAssistantMessages(t *testing.T) {
	sent := time.Now()
	reply := &Message{ID: uuid.New(), SenderID: AssistantID, ReceiverID: uuid.New(), CreatedAt: sent}

	assert.False(t, CanMutate(reply, AssistantID, sent))
	assert.False(t, CanMutate(reply, reply.ReceiverID, sent))
	assert.False(t, CanMutate(nil, uuid.New(), sent))
}

func TestInPair(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	assert.True(t, (&Message{SenderID: a, ReceiverID: b}).InPair(a, b))
	assert.True(t, (&Message{SenderID: b, ReceiverID: a}).InPair(a, b))
	assert.True(t, (&Message{SenderID: AssistantID, ReceiverID: b}).InPair(a, b))
	assert.False(t, (&Message{SenderID: a, ReceiverID: c}).InPair(a, b))
	assert.False(t, (&Message{SenderID: AssistantID, ReceiverID: c}).InPair(a, b))
}

func TestTimestampTruncatesToMicroseconds(t *testing.T) {
	in := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.FixedZone("x", 3600))
	out := Timestamp(in)

	assert.Equal(t, time.UTC, out.Location())
	assert.Equal(t, 123456000, out.Nanosecond())
	assert.True(t, in.Sub(out) < time.Microsecond)
}
