package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/messagely/apiserver/internal/notify"
	"github.com/messagely/apiserver/internal/store"
	"github.com/messagely/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type messageRepoStub struct {
	messages map[int64]types.Message
	nextID   int64
}

func newMessageRepoStub() *messageRepoStub {
	return &messageRepoStub{messages: make(map[int64]types.Message), nextID: 1}
}

func (s *messageRepoStub) Create(ctx context.Context, message types.Message) (types.Message, error) {
	message.ID = s.nextID
	s.nextID++
	message.SentAt = time.Now()
	message.ReadAt = nil
	s.messages[message.ID] = message
	return message, nil
}

func (s *messageRepoStub) Get(ctx context.Context, id int64) (types.Message, error) {
	message, ok := s.messages[id]
	if !ok {
		return types.Message{}, store.ErrNotFound
	}
	return message, nil
}

func (s *messageRepoStub) ListTo(ctx context.Context, username string) ([]types.Message, error) {
	return nil, nil
}

func (s *messageRepoStub) ListFrom(ctx context.Context, username string) ([]types.Message, error) {
	return nil, nil
}

func (s *messageRepoStub) MarkRead(ctx context.Context, id int64) (types.Message, error) {
	message, ok := s.messages[id]
	if !ok {
		return types.Message{}, store.ErrNotFound
	}
	if message.ReadAt != nil {
		return types.Message{}, store.ErrAlreadyRead
	}
	now := time.Now()
	message.ReadAt = &now
	s.messages[id] = message
	return types.Message{ID: id, ReadAt: &now}, nil
}

type notifierStub struct {
	events []notify.MessageSentEvent
	err    error
}

func (n *notifierStub) MessageSent(ctx context.Context, event notify.MessageSentEvent) error {
	n.events = append(n.events, event)
	return n.err
}

func (n *notifierStub) Close() error { return nil }

func TestSendPublishesEvent(t *testing.T) {
	repo := newMessageRepoStub()
	notifier := &notifierStub{}
	svc := NewMessageService(repo, notifier)

	message, err := svc.Send(context.Background(), "alice", "bob", "hi")
	require.NoError(t, err)
	assert.NotZero(t, message.ID)
	assert.Nil(t, message.ReadAt, "new messages start unread")

	require.Len(t, notifier.events, 1)
	event := notifier.events[0]
	assert.Equal(t, message.ID, event.ID)
	assert.Equal(t, "alice", event.FromUsername)
	assert.Equal(t, "bob", event.ToUsername)
	assert.Equal(t, message.SentAt, event.SentAt)
}

func TestSendRejectsEmptyBody(t *testing.T) {
	repo := newMessageRepoStub()
	notifier := &notifierStub{}
	svc := NewMessageService(repo, notifier)

	for _, body := range []string{"", "   ", "\n\t"} {
		_, err := svc.Send(context.Background(), "alice", "bob", body)
		assert.ErrorIs(t, err, ErrEmptyBody)
	}
	assert.Empty(t, notifier.events, "nothing published for rejected sends")
}

func TestSendSurvivesNotifierFailure(t *testing.T) {
	repo := newMessageRepoStub()
	notifier := &notifierStub{err: errors.New("broker down")}
	svc := NewMessageService(repo, notifier)

	message, err := svc.Send(context.Background(), "alice", "bob", "hi")
	require.NoError(t, err, "publish failures never fail the request")
	assert.NotZero(t, message.ID)
}

func TestMarkReadTransitionsOnce(t *testing.T) {
	repo := newMessageRepoStub()
	svc := NewMessageService(repo, nil)

	message, err := svc.Send(context.Background(), "alice", "bob", "hi")
	require.NoError(t, err)

	marked, err := svc.MarkRead(context.Background(), message.ID)
	require.NoError(t, err)
	require.NotNil(t, marked.ReadAt)
	first := *marked.ReadAt

	_, err = svc.MarkRead(context.Background(), message.ID)
	assert.ErrorIs(t, err, store.ErrAlreadyRead)

	stored, err := svc.Get(context.Background(), message.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ReadAt)
	assert.True(t, stored.ReadAt.Equal(first), "read_at never changes once set")

	_, err = svc.MarkRead(context.Background(), 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
