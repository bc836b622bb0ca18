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
	"go.uber.org/zap"
)

// AssistantFailureNotice replaces the reply when the AI boundary fails.
const AssistantFailureNotice = "The assistant could not answer right now. Please try again later."

const assistantHistoryLimit = 20

// interleave answers an assistant query. The question keeps its tagged text,
// the reply is attributed to the assistant and addressed to the peer, and
// both are written in one exchange. A failed AI call still produces a reply.
func (s *MessageService) interleave(
	ctx context.Context,
	askerID, peerID uuid.UUID,
	intent domain.Intent,
	extra json.RawMessage,
	askedAt time.Time,
) (*SendResult, error) {
	req := assistant.Request{
		Question: intent.Text,
		AskerID:  askerID,
		PeerID:   peerID,
		History:  s.recentHistory(ctx, askerID, peerID),
		Context:  extra,
	}

	started := time.Now()
	answer, err := s.assistant.Ask(ctx, req)
	metrics.AssistantLatency.Observe(time.Since(started).Seconds())

	text := answer.Text
	if err != nil {
		metrics.AssistantCalls.WithLabelValues("error").Inc()
		s.log.Warn("assistant call failed",
			zap.Stringer("asker_id", askerID),
			zap.Stringer("peer_id", peerID),
			zap.Error(err),
		)
		text = AssistantFailureNotice
	} else {
		metrics.AssistantCalls.WithLabelValues("ok").Inc()
	}

	question := &domain.Message{
		SenderID:   askerID,
		ReceiverID: peerID,
		Content:    intent.Raw,
		CreatedAt:  askedAt,
	}
	reply := &domain.Message{
		SenderID:   domain.AssistantID,
		ReceiverID: peerID,
		Content:    text,
		CreatedAt:  askedAt.Add(domain.AssistantReplyOffset),
	}

	// the request context may be gone after a slow AI call; the exchange
	// must still be written so the question is never left unanswered
	writeCtx := context.WithoutCancel(ctx)
	if err := s.messageRepo.CreateExchange(writeCtx, question, reply); err != nil {
		return nil, fmt.Errorf("%w: creating assistant exchange: %w", ErrSendFailed, err)
	}
	metrics.MessagesPersisted.WithLabelValues("question").Inc()
	metrics.MessagesPersisted.WithLabelValues("reply").Inc()

	s.notifyNew(question, askerID, peerID)
	s.notifyNew(reply, askerID, peerID)

	return &SendResult{Message: *question, Reply: reply}, nil
}

func (s *MessageService) recentHistory(ctx context.Context, askerID, peerID uuid.UUID) []domain.Message {
	history, err := s.messageRepo.ListByPair(ctx, askerID, peerID, nil, assistantHistoryLimit)
	if err != nil {
		s.log.Warn("loading assistant history failed", zap.Error(err))
		return nil
	}
	return history
}
