package notify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/messagely/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQNotifier publishes message-sent events to a RabbitMQ queue.
type RabbitMQNotifier struct {
	conn            *amqp.Connection
	channel         *amqp.Channel
	queue           string
	queueDurable    bool
	queueAutoDelete bool
}

// NewRabbitMQNotifier connects to RabbitMQ and declares the event queue.
func NewRabbitMQNotifier(cfg config.RabbitMQConfig, queue string) (*RabbitMQNotifier, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if strings.TrimSpace(queue) == "" {
		return nil, errors.New("rabbitmq queue is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	n := &RabbitMQNotifier{
		conn:            conn,
		channel:         ch,
		queue:           queue,
		queueDurable:    cfg.QueueDurable,
		queueAutoDelete: cfg.QueueAutoDelete,
	}
	if _, err := n.declareQueue(); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return n, nil
}

// MessageSent publishes the event as JSON to the configured queue.
func (n *RabbitMQNotifier) MessageSent(ctx context.Context, event MessageSentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return n.channel.PublishWithContext(ctx, "", n.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   newEventID(),
		Headers: amqp.Table{
			"message_id": strconv.FormatInt(event.ID, 10),
			"to":         event.ToUsername,
		},
		Body: data,
	})
}

// Close closes the underlying channel and connection.
func (n *RabbitMQNotifier) Close() error {
	if n.channel != nil {
		_ = n.channel.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

func (n *RabbitMQNotifier) declareQueue() (amqp.Queue, error) {
	return n.channel.QueueDeclare(
		n.queue,
		n.queueDurable,
		n.queueAutoDelete,
		false,
		false,
		nil,
	)
}

func newEventID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(buf[:])
}
