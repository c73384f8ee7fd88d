package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	domain "github.com/jeniffer-joyce/HousebibiGoWhere/internal/domain"
)

// PubSubInventoryPublisher publishes inventory adjustment events to a Pub/Sub topic.
type PubSubInventoryPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubInventoryPublisher constructs a Pub/Sub backed adjustment publisher.
func NewPubSubInventoryPublisher(topic *pubsub.Topic) (*PubSubInventoryPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub inventory publisher: topic is required")
	}
	return &PubSubInventoryPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishInventoryAdjustment sends the event and waits for the server-assigned message id.
func (p *PubSubInventoryPublisher) PublishInventoryAdjustment(ctx context.Context, event domain.InventoryAdjustmentEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub inventory publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal inventory event: %w", err)
	}

	attrs := make(map[string]string, 4)
	setAttr(attrs, "eventId", event.ID)
	setAttr(attrs, "sellerId", event.SellerID)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "action", string(event.Action))

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish inventory event: %w", err)
	}
	return id, nil
}

// Check verifies the topic exists. It backs the readiness check.
func (p *PubSubInventoryPublisher) Check(ctx context.Context) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub inventory publisher: not initialised")
	}
	ok, err := p.topic.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check topic %s: %w", p.topic.ID(), err)
	}
	if !ok {
		return fmt.Errorf("topic %s does not exist", p.topic.ID())
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
