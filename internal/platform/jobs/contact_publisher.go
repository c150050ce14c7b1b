// Package jobs publishes domain events to Pub/Sub for asynchronous consumers.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/Hoangthang194/review-agency-sub000/internal/services"
)

const contactSubmittedEvent = "contact.submitted"

// PubSubContactPublisher announces new contact submissions on a Pub/Sub topic.
type PubSubContactPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var _ services.ContactEventPublisher = (*PubSubContactPublisher)(nil)

func NewPubSubContactPublisher(topic *pubsub.Topic) (*PubSubContactPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub contact publisher: topic is required")
	}
	return &PubSubContactPublisher{topic: topic, marshal: json.Marshal}, nil
}

// PublishContactSubmitted blocks until the server acknowledges the message.
func (p *PubSubContactPublisher) PublishContactSubmitted(ctx context.Context, event services.ContactSubmittedEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub contact publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal contact event: %w", err)
	}

	attrs := map[string]string{"event": contactSubmittedEvent}
	setAttr(attrs, "contactId", event.ContactID)
	setAttr(attrs, "source", event.Source)

	result := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish contact event: %w", err)
	}
	return id, nil
}

// Stop flushes pending messages.
func (p *PubSubContactPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
