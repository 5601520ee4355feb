package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/messagely/apiserver/types"
)

// MessageRepository handles persistence for messages.
type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, message types.Message) (types.Message, error) {
	message.SentAt = time.Now()
	message.ReadAt = nil

	const query = `
		INSERT INTO messages (from_username, to_username, body, sent_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		message.FromUsername,
		message.ToUsername,
		message.Body,
		message.SentAt,
	).Scan(&message.ID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "foreign_key_violation" {
			return types.Message{}, ErrUnknownUser
		}
		return types.Message{}, err
	}
	return message, nil
}

// Get returns a message with both participant summaries joined in.
func (r *MessageRepository) Get(ctx context.Context, id int64) (types.Message, error) {
	const query = `
		SELECT m.id, m.body, m.sent_at, m.read_at,
		       f.username, f.first_name, f.last_name, f.phone,
		       t.username, t.first_name, t.last_name, t.phone
		FROM messages m
		JOIN users f ON m.from_username = f.username
		JOIN users t ON m.to_username = t.username
		WHERE m.id = $1`
	var message types.Message
	var from, to types.UserSummary
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&message.ID,
		&message.Body,
		&message.SentAt,
		&message.ReadAt,
		&from.Username,
		&from.FirstName,
		&from.LastName,
		&from.Phone,
		&to.Username,
		&to.FirstName,
		&to.LastName,
		&to.Phone,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Message{}, ErrNotFound
		}
		return types.Message{}, err
	}

	message.FromUser = &from
	message.ToUser = &to
	return message, nil
}

// ListTo returns messages addressed to the user, most recent first, each
// with the sender summary attached.
func (r *MessageRepository) ListTo(ctx context.Context, username string) ([]types.Message, error) {
	const query = `
		SELECT m.id, m.body, m.sent_at, m.read_at,
		       f.username, f.first_name, f.last_name, f.phone
		FROM messages m
		JOIN users f ON m.from_username = f.username
		WHERE m.to_username = $1
		ORDER BY m.sent_at DESC`
	return r.listWithParticipant(ctx, query, username, true)
}

// ListFrom returns messages sent by the user, most recent first, each with
// the recipient summary attached.
func (r *MessageRepository) ListFrom(ctx context.Context, username string) ([]types.Message, error) {
	const query = `
		SELECT m.id, m.body, m.sent_at, m.read_at,
		       t.username, t.first_name, t.last_name, t.phone
		FROM messages m
		JOIN users t ON m.to_username = t.username
		WHERE m.from_username = $1
		ORDER BY m.sent_at DESC`
	return r.listWithParticipant(ctx, query, username, false)
}

// MarkRead sets read_at, transitioning only if the message is currently
// unread. The conditional UPDATE makes the transition atomic: of two
// concurrent calls, exactly one wins.
func (r *MessageRepository) MarkRead(ctx context.Context, id int64) (types.Message, error) {
	now := time.Now()

	const query = `
		UPDATE messages
		SET read_at = $1
		WHERE id = $2 AND read_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, now, id)
	if err != nil {
		return types.Message{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Message{}, err
	}
	if affected == 0 {
		// Either the id is unknown or the message was already read.
		const probe = `SELECT read_at FROM messages WHERE id = $1`
		var readAt *time.Time
		if err := r.db.QueryRowContext(ctx, probe, id).Scan(&readAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return types.Message{}, ErrNotFound
			}
			return types.Message{}, err
		}
		return types.Message{}, ErrAlreadyRead
	}

	return types.Message{ID: id, ReadAt: &now}, nil
}

func (r *MessageRepository) listWithParticipant(ctx context.Context, query, username string, sender bool) ([]types.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]types.Message, 0)
	for rows.Next() {
		var message types.Message
		var participant types.UserSummary
		if err := rows.Scan(
			&message.ID,
			&message.Body,
			&message.SentAt,
			&message.ReadAt,
			&participant.Username,
			&participant.FirstName,
			&participant.LastName,
			&participant.Phone,
		); err != nil {
			return nil, err
		}
		if sender {
			message.FromUser = &participant
		} else {
			message.ToUser = &participant
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}
