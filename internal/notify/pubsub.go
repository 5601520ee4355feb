package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/messagely/apiserver/config"
	"google.golang.org/api/option"
)

// PubSubNotifier publishes message-sent events to a Google Pub/Sub topic.
type PubSubNotifier struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubNotifier constructs a Pub/Sub notifier, creating the topic if it
// does not exist.
func NewPubSubNotifier(ctx context.Context, cfg config.PubSubConfig, topicName string) (*PubSubNotifier, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}
	if strings.TrimSpace(topicName) == "" {
		return nil, errors.New("pubsub topic is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	topic := client.Topic(topicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicName)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
	}

	return &PubSubNotifier{
		client: client,
		topic:  topic,
	}, nil
}

// MessageSent publishes the event as JSON to the configured topic.
func (n *PubSubNotifier) MessageSent(ctx context.Context, event MessageSentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	result := n.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"message_id": strconv.FormatInt(event.ID, 10),
			"to":         event.ToUsername,
		},
	})
	_, err = result.Get(ctx)
	return err
}

// Close stops the topic's publish goroutines and closes the client.
func (n *PubSubNotifier) Close() error {
	n.topic.Stop()
	return n.client.Close()
}
