package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/messagely/apiserver/internal/notify"
	"github.com/messagely/apiserver/types"
)

// ErrEmptyBody is returned when a message body is empty.
var ErrEmptyBody = errors.New("message body is required")

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Create(ctx context.Context, message types.Message) (types.Message, error)
	Get(ctx context.Context, id int64) (types.Message, error)
	ListTo(ctx context.Context, username string) ([]types.Message, error)
	ListFrom(ctx context.Context, username string) ([]types.Message, error)
	MarkRead(ctx context.Context, id int64) (types.Message, error)
}

// MessageService encapsulates message use-cases.
type MessageService struct {
	repo     MessageRepository
	notifier notify.Notifier
}

func NewMessageService(repo MessageRepository, notifier notify.Notifier) *MessageService {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &MessageService{repo: repo, notifier: notifier}
}

// Send stores a new unread message and publishes a message-sent event.
// The publish is best-effort: a broker failure is logged but never fails
// the request, since the row is already durable.
func (s *MessageService) Send(ctx context.Context, from, to, body string) (types.Message, error) {
	if strings.TrimSpace(body) == "" {
		return types.Message{}, ErrEmptyBody
	}

	message, err := s.repo.Create(ctx, types.Message{
		FromUsername: from,
		ToUsername:   to,
		Body:         body,
	})
	if err != nil {
		return types.Message{}, err
	}

	if err := s.notifier.MessageSent(ctx, notify.MessageSentEvent{
		ID:           message.ID,
		FromUsername: message.FromUsername,
		ToUsername:   message.ToUsername,
		SentAt:       message.SentAt,
	}); err != nil {
		log.Printf("message %d: notify failed: %v", message.ID, err)
	}

	return message, nil
}

func (s *MessageService) Get(ctx context.Context, id int64) (types.Message, error) {
	return s.repo.Get(ctx, id)
}

func (s *MessageService) ListTo(ctx context.Context, username string) ([]types.Message, error) {
	return s.repo.ListTo(ctx, username)
}

func (s *MessageService) ListFrom(ctx context.Context, username string) ([]types.Message, error) {
	return s.repo.ListFrom(ctx, username)
}

func (s *MessageService) MarkRead(ctx context.Context, id int64) (types.Message, error) {
	return s.repo.MarkRead(ctx, id)
}
