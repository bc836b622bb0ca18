package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vedran77/studychat/internal/domain"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

// rowQuerier is satisfied by both the pool and a transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const messageColumns = `id, sender_id, receiver_id, content, created_at, is_edited, edited_at`

func insertMessage(ctx context.Context, q rowQuerier, msg *domain.Message) error {
	query := `
		INSERT INTO messages (sender_id, receiver_id, content, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	return q.QueryRow(ctx, query, msg.SenderID, msg.ReceiverID, msg.Content, msg.CreatedAt).Scan(&msg.ID)
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	return insertMessage(ctx, r.pool, msg)
}

func (r *MessageRepo) CreateExchange(ctx context.Context, question, reply *domain.Message) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin exchange: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertMessage(ctx, tx, question); err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	if err := insertMessage(ctx, tx, reply); err != nil {
		return fmt.Errorf("insert reply: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	var msg domain.Message
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content,
		&msg.CreatedAt, &msg.IsEdited, &msg.EditedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *MessageRepo) ListByPair(ctx context.Context, a, b uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error) {
	pair := `((sender_id = $1 AND receiver_id = $2)
			OR (sender_id = $2 AND receiver_id = $1)
			OR (sender_id = $3 AND receiver_id IN ($1, $2)))`

	var query string
	var args []any

	if before != nil {
		query = fmt.Sprintf(`
			SELECT %s FROM messages
			WHERE %s
				AND (created_at, id) < (SELECT created_at, id FROM messages WHERE id = $4)
			ORDER BY created_at DESC, id DESC
			LIMIT %d`, messageColumns, pair, limit)
		args = []any{a, b, domain.AssistantID, *before}
	} else {
		query = fmt.Sprintf(`
			SELECT %s FROM messages
			WHERE %s
			ORDER BY created_at DESC, id DESC
			LIMIT %d`, messageColumns, pair, limit)
		args = []any{a, b, domain.AssistantID}
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content,
			&msg.CreatedAt, &msg.IsEdited, &msg.EditedAt,
		); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	// Reverse to chronological order (query returns DESC)
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, rows.Err()
}

func (r *MessageRepo) UpdateContent(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error {
	query := `UPDATE messages SET content = $1, is_edited = TRUE, edited_at = $2 WHERE id = $3`
	_, err := r.pool.Exec(ctx, query, content, editedAt, id)
	return err
}

func (r *MessageRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	return err
}
