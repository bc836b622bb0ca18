package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/studychat/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const messageColumns = `id, sender_id, receiver_id, content, created_at, is_edited, edited_at`

func insertMessage(ctx context.Context, ex execer, msg *domain.Message) error {
	id := uuid.New()
	_, err := ex.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id.String(), msg.SenderID.String(), msg.ReceiverID.String(), msg.Content, toMicros(msg.CreatedAt),
	)
	if err != nil {
		return err
	}
	msg.ID = id
	return nil
}

func (r *MessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	return insertMessage(ctx, r.db, msg)
}

func (r *MessageRepo) CreateExchange(ctx context.Context, question, reply *domain.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin exchange: %w", err)
	}
	defer tx.Rollback()

	if err := insertMessage(ctx, tx, question); err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	if err := insertMessage(ctx, tx, reply); err != nil {
		return fmt.Errorf("insert reply: %w", err)
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (domain.Message, error) {
	var (
		msg       domain.Message
		createdAt int64
		isEdited  bool
		editedAt  sql.NullInt64
	)
	if err := s.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &createdAt, &isEdited, &editedAt); err != nil {
		return msg, err
	}
	msg.CreatedAt = fromMicros(createdAt)
	msg.IsEdited = isEdited
	if editedAt.Valid {
		t := fromMicros(editedAt.Int64)
		msg.EditedAt = &t
	}
	return msg, nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id.String())
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *MessageRepo) ListByPair(ctx context.Context, a, b uuid.UUID, before *uuid.UUID, limit int) ([]domain.Message, error) {
	pair := `((sender_id = ?1 AND receiver_id = ?2)
			OR (sender_id = ?2 AND receiver_id = ?1)
			OR (sender_id = ?3 AND receiver_id IN (?1, ?2)))`
	args := []any{a.String(), b.String(), domain.AssistantID.String(), limit}

	query := `SELECT ` + messageColumns + ` FROM messages WHERE ` + pair
	if before != nil {
		query += ` AND (created_at, id) < (SELECT created_at, id FROM messages WHERE id = ?5)`
		args = append(args, before.String())
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?4`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, rows.Err()
}

func (r *MessageRepo) UpdateContent(ctx context.Context, id uuid.UUID, content string, editedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET content = ?, is_edited = 1, edited_at = ? WHERE id = ?`,
		content, toMicros(editedAt), id.String(),
	)
	return err
}

func (r *MessageRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id.String())
	return err
}
